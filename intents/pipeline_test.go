package intents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// allowAllValidator approves every proposed move, for tests that only
// exercise conflict resolution, not validation.
type allowAllValidator struct{}

func (allowAllValidator) CanOccupy(storage.EntityId, geometry.Axial) bool { return true }

// denyValidator rejects any move onto a point in Blocked.
type denyValidator struct {
	Blocked map[geometry.Axial]bool
}

func (d denyValidator) CanOccupy(_ storage.EntityId, pos geometry.Axial) bool {
	return !d.Blocked[pos]
}

func TestReduceMoveConflictKeepsLastCollected(t *testing.T) {
	// Entities are visited in ascending EntityId order during collect
	// (engine.collect), so the batch arrives in that order; the later
	// entry for a contested destination is the later write and wins.
	dest := geometry.Axial{Q: 5, R: 5}
	batch := []Intent{
		MoveIntent{Entity: 2, Position: dest},
		MoveIntent{Entity: 7, Position: dest},
		MoveIntent{Entity: 9, Position: dest},
	}
	reduced := Reduce(allowAllValidator{}, batch)
	require.Len(t, reduced, 1)
	m := reduced[0].(MoveIntent)
	assert.Equal(t, storage.EntityId(9), m.Entity, "the last-collected entity wins the conflict")
}

func TestReduceMoveConflictIsOrderNotIdBased(t *testing.T) {
	// Same destination, but the lowest id is collected last: last-
	// write-wins must pick it, proving the rule tracks collection
	// order rather than id magnitude.
	dest := geometry.Axial{Q: 5, R: 5}
	batch := []Intent{
		MoveIntent{Entity: 9, Position: dest},
		MoveIntent{Entity: 7, Position: dest},
		MoveIntent{Entity: 2, Position: dest},
	}
	reduced := Reduce(allowAllValidator{}, batch)
	require.Len(t, reduced, 1)
	m := reduced[0].(MoveIntent)
	assert.Equal(t, storage.EntityId(2), m.Entity)
}

func TestReduceNonConflictingMovesAllSurvive(t *testing.T) {
	batch := []Intent{
		MoveIntent{Entity: 1, Position: geometry.Axial{Q: 1, R: 0}},
		MoveIntent{Entity: 2, Position: geometry.Axial{Q: 2, R: 0}},
	}
	reduced := Reduce(allowAllValidator{}, batch)
	assert.Len(t, reduced, 2)
}

func TestReduceDropsMoveRejectedByValidator(t *testing.T) {
	wall := geometry.Axial{Q: 3, R: 3}
	batch := []Intent{
		MoveIntent{Entity: 1, Position: wall},
		MoveIntent{Entity: 2, Position: geometry.Axial{Q: 9, R: 9}},
	}
	validator := denyValidator{Blocked: map[geometry.Axial]bool{wall: true}}
	reduced := Reduce(validator, batch)
	require.Len(t, reduced, 1)
	m := reduced[0].(MoveIntent)
	assert.Equal(t, storage.EntityId(2), m.Entity)
}

func TestReduceMineConflictKeepsLowestBot(t *testing.T) {
	resource := storage.EntityId(50)
	batch := []Intent{
		MineIntent{Bot: 9, Resource: resource},
		MineIntent{Bot: 3, Resource: resource},
		MineIntent{Bot: 7, Resource: resource},
	}
	reduced := Reduce(allowAllValidator{}, batch)
	require.Len(t, reduced, 1)
	m := reduced[0].(MineIntent)
	assert.Equal(t, storage.EntityId(3), m.Bot, "a contested resource funds the lowest bot id")
}

func TestReduceDropConflictKeepsFirstPerBot(t *testing.T) {
	batch := []Intent{
		DropIntent{Bot: 4, Target: 10},
		DropIntent{Bot: 4, Target: 11},
	}
	reduced := Reduce(allowAllValidator{}, batch)
	require.Len(t, reduced, 1)
	d := reduced[0].(DropIntent)
	assert.Equal(t, storage.EntityId(10), d.Target, "a bot unloads at most once per tick, first target wins")
}

func TestReduceBuildConflictKeepsLowestBuilder(t *testing.T) {
	site := geometry.Axial{Q: 2, R: 2}
	batch := []Intent{
		BuildIntent{Builder: 8, Position: site},
		BuildIntent{Builder: 5, Position: site},
	}
	reduced := Reduce(allowAllValidator{}, batch)
	require.Len(t, reduced, 1)
	b := reduced[0].(BuildIntent)
	assert.Equal(t, storage.EntityId(5), b.Builder)
}

func TestApplyStageOrder(t *testing.T) {
	var order []string
	target := &recordingTarget{order: &order}

	batch := []Intent{
		SpawnIntent{Owner: storage.NewUserId([16]byte{}), Position: geometry.Axial{}},
		DeleteIntent{Entity: 1},
		BuildIntent{Builder: 1, Position: geometry.Axial{Q: 2}},
		DropIntent{Bot: 1, Target: 2},
		MineIntent{Bot: 1, Resource: 3},
		MoveIntent{Entity: 1, Position: geometry.Axial{Q: 1}},
		LogIntent{Entity: 1, Time: 0, Payload: "hi"},
	}
	Apply(target, batch)

	want := []string{"log", "move", "mine", "drop", "build", "spawn", "delete"}
	assert.Equal(t, want, order)
}

type recordingTarget struct {
	order *[]string
}

func (r *recordingTarget) ApplyLog(LogIntent)     { *r.order = append(*r.order, "log") }
func (r *recordingTarget) ApplyMove(MoveIntent)   { *r.order = append(*r.order, "move") }
func (r *recordingTarget) ApplyMine(MineIntent)   { *r.order = append(*r.order, "mine") }
func (r *recordingTarget) ApplyDrop(DropIntent)   { *r.order = append(*r.order, "drop") }
func (r *recordingTarget) ApplyBuild(BuildIntent) { *r.order = append(*r.order, "build") }
func (r *recordingTarget) ApplySpawn(SpawnIntent) { *r.order = append(*r.order, "spawn") }
func (r *recordingTarget) ApplyDelete(DeleteIntent) {
	*r.order = append(*r.order, "delete")
}
