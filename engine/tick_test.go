package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/bytecode"
	"github.com/caolo/simcore/compiler"
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/scriptapi"
	"github.com/caolo/simcore/storage"
	"github.com/caolo/simcore/systems"
	"github.com/caolo/simcore/vm"
	"github.com/caolo/simcore/world"
)

func testOwner() storage.UserId {
	return storage.NewUserId(uuid.MustParse("11111111-2222-3333-4444-555555555555"))
}

// newScriptedBot installs a bot at pos in room (0,0) with plain
// terrain underneath, running the given compiled program.
func newScriptedBot(t *testing.T, w *world.World, pos geometry.Axial, program *compiler.Program) storage.EntityId {
	t.Helper()
	id := w.AllocateEntity()
	w.BotMarker.Insert(id, struct{}{})
	w.OwnedBy.Insert(id, testOwner())
	w.Position.Insert(id, world.WorldPosition{Pos: pos})
	scriptId := world.ScriptId(uuid.NewString())
	w.ScriptRef.Insert(id, scriptId)
	w.Programs.Insert(scriptId, program)
	return id
}

func compileUnit(t *testing.T, unit *compiler.CompilationUnit) *compiler.Program {
	t.Helper()
	program, err := compiler.New(scriptapi.Signatures()).Compile(unit)
	require.NoError(t, err)
	return program
}

// stringArray renders s as the char-code array literal console_log
// consumes.
func stringArray(s string) compiler.Literal {
	codes := make([]int64, len(s))
	for i := 0; i < len(s); i++ {
		codes[i] = int64(s[i])
	}
	return compiler.Literal{Tag: bytecode.TagArray, Array: codes}
}

func TestCompileAndRunFloatAddition(t *testing.T) {
	// The canonical end-to-end check: two float literals feeding an
	// AddFloat root compile to one program whose run leaves exactly
	// their sum on the stack.
	unit := &compiler.CompilationUnit{
		Nodes: map[compiler.NodeId]compiler.AstNode{
			0: {Instruction: bytecode.LiteralFloat, Literal: compiler.Literal{Tag: bytecode.TagFloat, Float: 42.0}},
			1: {Instruction: bytecode.LiteralFloat, Literal: compiler.Literal{Tag: bytecode.TagFloat, Float: 512.0}},
			2: {Instruction: bytecode.AddFloat},
		},
		Inputs: map[compiler.NodeId][]compiler.NodeId{
			2: {0, 1},
		},
	}
	program := compileUnit(t, unit)
	require.Len(t, program.Roots, 1)
	assert.Equal(t, compiler.NodeId(2), program.Roots[0].RootId)

	machine := vm.New[struct{}](program.Roots[0].Bytecode, nil, struct{}{})
	stack, execErr := machine.Run(0)
	require.Nil(t, execErr)
	require.Len(t, stack, 1)
	assert.Equal(t, 554.0, stack[0].Float)
}

func TestForwardAdvancesClock(t *testing.T) {
	w := world.New()
	require.NoError(t, Forward(w))
	assert.Equal(t, int64(1), w.Time)
}

func TestForwardDecayKillsEntity(t *testing.T) {
	w := world.New()
	pos := geometry.Axial{Q: 1, R: 1}
	w.Room(geometry.Axial{}).Terrain.Insert(pos, world.Terrain{})

	id := w.AllocateEntity()
	w.BotMarker.Insert(id, struct{}{})
	w.Position.Insert(id, world.WorldPosition{Pos: pos})
	w.Hp.Insert(id, systems.Hp{Value: 3})
	w.Decay.Insert(id, systems.Decay{T: 0, HpPerTick: 5})
	w.RebuildPositionIndex()

	require.NoError(t, Forward(w))

	assert.False(t, w.Hp.Contains(id))
	assert.False(t, w.Decay.Contains(id))
	assert.False(t, w.Position.Contains(id))
	assert.False(t, w.BotMarker.Contains(id))
	assert.False(t, w.Room(geometry.Axial{}).EntityAt.Contains(pos),
		"the position index must not keep a row for a decayed entity")
}

func TestForwardAccumulatesLogsInEmissionOrder(t *testing.T) {
	// Two console_log roots in one script: both payloads land in the
	// same (entity, tick) log row, in ascending root order.
	unit := &compiler.CompilationUnit{
		Nodes: map[compiler.NodeId]compiler.AstNode{
			0: {Instruction: bytecode.LiteralArray, Literal: stringArray("first")},
			1: {Instruction: bytecode.Call, FunctionName: "console_log"},
			2: {Instruction: bytecode.LiteralArray, Literal: stringArray("second")},
			3: {Instruction: bytecode.Call, FunctionName: "console_log"},
		},
		Inputs: map[compiler.NodeId][]compiler.NodeId{
			1: {0},
			3: {2},
		},
	}
	program := compileUnit(t, unit)
	require.Len(t, program.Roots, 2)

	w := world.New()
	bot := newScriptedBot(t, w, geometry.Axial{Q: 0, R: 0}, program)

	require.NoError(t, Forward(w))

	entry, ok := w.Log.Get(world.NewLogKey(bot, 0))
	require.True(t, ok, "log row for (entity, tick 0) should exist")
	require.Len(t, entry.Payloads, 2)
	assert.Contains(t, entry.Payloads[0], "first")
	assert.Contains(t, entry.Payloads[1], "second")
}

func TestForwardMovesBotViaScript(t *testing.T) {
	// make_point(1, 0) feeding move_bot: after one tick the bot's
	// position and the rebuilt position index both reflect the move.
	unit := &compiler.CompilationUnit{
		Nodes: map[compiler.NodeId]compiler.AstNode{
			0: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: 1}},
			1: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: 0}},
			2: {Instruction: bytecode.Call, FunctionName: "make_point"},
			3: {Instruction: bytecode.Call, FunctionName: "move_bot"},
		},
		Inputs: map[compiler.NodeId][]compiler.NodeId{
			2: {0, 1},
			3: {2},
		},
	}
	program := compileUnit(t, unit)

	w := world.New()
	room := w.Room(geometry.Axial{})
	from := geometry.Axial{Q: 0, R: 0}
	to := geometry.Axial{Q: 1, R: 0}
	room.Terrain.Insert(from, world.Terrain{})
	room.Terrain.Insert(to, world.Terrain{})

	bot := newScriptedBot(t, w, from, program)
	w.RebuildPositionIndex()

	require.NoError(t, Forward(w))

	pos, ok := w.Position.Get(bot)
	require.True(t, ok)
	assert.Equal(t, to, pos.Pos)

	occupant, ok := room.EntityAt.Get(to)
	require.True(t, ok)
	assert.Equal(t, bot, occupant)
	assert.False(t, room.EntityAt.Contains(from))
}

func TestForwardRejectsMoveOntoWall(t *testing.T) {
	unit := &compiler.CompilationUnit{
		Nodes: map[compiler.NodeId]compiler.AstNode{
			0: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: 1}},
			1: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: 0}},
			2: {Instruction: bytecode.Call, FunctionName: "make_point"},
			3: {Instruction: bytecode.Call, FunctionName: "move_bot"},
		},
		Inputs: map[compiler.NodeId][]compiler.NodeId{
			2: {0, 1},
			3: {2},
		},
	}
	program := compileUnit(t, unit)

	w := world.New()
	room := w.Room(geometry.Axial{})
	from := geometry.Axial{Q: 0, R: 0}
	room.Terrain.Insert(from, world.Terrain{})
	room.Terrain.Insert(geometry.Axial{Q: 1, R: 0}, world.Terrain{Kind: world.Wall})

	bot := newScriptedBot(t, w, from, program)
	w.RebuildPositionIndex()

	require.NoError(t, Forward(w))

	pos, ok := w.Position.Get(bot)
	require.True(t, ok)
	assert.Equal(t, from, pos.Pos, "a move onto a wall must be dropped in reduce")
}

func TestForwardPositionIndexIsBijective(t *testing.T) {
	w := world.New()
	room := geometry.Axial{}
	for i := 0; i < 5; i++ {
		pos := geometry.Axial{Q: int32(i), R: 0}
		w.Room(room).Terrain.Insert(pos, world.Terrain{})
		id := w.AllocateEntity()
		w.BotMarker.Insert(id, struct{}{})
		w.Position.Insert(id, world.WorldPosition{Room: room, Pos: pos})
	}

	require.NoError(t, Forward(w))

	index := w.Room(room).EntityAt
	assert.Equal(t, w.Position.Len(), index.Len())
	w.Position.ForEach(func(id storage.EntityId, pos world.WorldPosition) bool {
		occupant, ok := index.Get(pos.Pos)
		require.True(t, ok, "position table entry missing from the index")
		assert.Equal(t, id, occupant)
		return true
	})
}

func TestForwardScriptErrorDoesNotAdvanceClock(t *testing.T) {
	// A program that divides by zero: its emitted intents (none)
	// are dropped, the error is surfaced, and the clock holds still.
	unit := &compiler.CompilationUnit{
		Nodes: map[compiler.NodeId]compiler.AstNode{
			0: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: 1}},
			1: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: 0}},
			2: {Instruction: bytecode.DivInt},
		},
		Inputs: map[compiler.NodeId][]compiler.NodeId{
			2: {0, 1},
		},
	}
	program := compileUnit(t, unit)

	w := world.New()
	w.Room(geometry.Axial{}).Terrain.Insert(geometry.Axial{}, world.Terrain{})
	newScriptedBot(t, w, geometry.Axial{}, program)

	err := Forward(w)
	require.Error(t, err)
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, vm.DivideByZero, scriptErr.Err.Kind)
	assert.Equal(t, int64(0), w.Time, "a tick with an aborted script must not advance the clock")
}

func TestForwardMineViaScript(t *testing.T) {
	// The bot mines as much as its carry can hold; the remainder stays
	// in the resource for the next tick.
	w := world.New()
	room := w.Room(geometry.Axial{})
	botPos := geometry.Axial{Q: 0, R: 0}
	room.Terrain.Insert(botPos, world.Terrain{})

	resource := w.AllocateEntity()
	w.ResourceMarker.Insert(resource, struct{}{})
	w.Position.Insert(resource, world.WorldPosition{Pos: geometry.Axial{Q: 1, R: 0}})
	w.Resource.Insert(resource, world.Resource{Amount: 30})

	unit := &compiler.CompilationUnit{
		Nodes: map[compiler.NodeId]compiler.AstNode{
			0: {Instruction: bytecode.LiteralInt, Literal: compiler.Literal{Tag: bytecode.TagInt, Int: int64(resource)}},
			1: {Instruction: bytecode.Call, FunctionName: "mine_resource"},
		},
		Inputs: map[compiler.NodeId][]compiler.NodeId{
			1: {0},
		},
	}
	program := compileUnit(t, unit)

	bot := newScriptedBot(t, w, botPos, program)
	w.Carry.Insert(bot, world.Carry{Amount: 0, Max: 20})
	w.RebuildPositionIndex()

	require.NoError(t, Forward(w))

	carry, ok := w.Carry.Get(bot)
	require.True(t, ok)
	assert.Equal(t, int32(20), carry.Amount, "mine fills the bot's carry to its cap")

	res, ok := w.Resource.Get(resource)
	require.True(t, ok)
	assert.Equal(t, int64(10), res.Amount, "the resource keeps what the bot could not carry")
}
