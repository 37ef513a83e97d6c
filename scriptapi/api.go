// Package scriptapi implements the host builtins every compiled
// script runs against, and the Schema introspection document those
// builtins are described by. Builtins exchange values through the
// VM's int64-marshalled arena convention: scalar arguments arrive as
// consecutive 8-byte slots at inPtr, composite results are written at
// outPtr and returned by length.
package scriptapi

import (
	"fmt"

	"github.com/caolo/simcore/bytecode"
	"github.com/caolo/simcore/compiler"
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/intents"
	"github.com/caolo/simcore/storage"
	"github.com/caolo/simcore/vm"
)

// Aux is the per-execution host state every script's VM instance
// carries: which entity is running, who owns it, the room it stands
// in, and the buffer its intents accumulate into. Owner is threaded
// here explicitly rather than defaulted, so move_bot and friends never
// fall back on a placeholder identity.
type Aux struct {
	Entity storage.EntityId
	Owner  storage.UserId
	Room   geometry.Axial
	Tick   int64
	Buffer *intents.Buffer
}

// operationOk is the OperationResult status code move_bot,
// mine_resource, drop_resource and build_structure write to outPtr.
// They always write it: the intents they push are only validated
// later, in the pipeline's reduce stage.
const operationOk = 0

// Functions returns the set of host functions bound into every VM
// instance, keyed by name, ready to pass to vm.New.
func Functions() map[string]vm.Function[*Aux] {
	return map[string]vm.Function[*Aux]{
		"console_log":     {Inputs: 1, Fn: consoleLog},
		"log_scalar":      {Inputs: 1, Fn: logScalar},
		"move_bot":        {Inputs: 1, Fn: moveBot},
		"make_point":      {Inputs: 2, Fn: makePoint},
		"mine_resource":   {Inputs: 1, Fn: mineResource},
		"drop_resource":   {Inputs: 1, Fn: dropResource},
		"build_structure": {Inputs: 1, Fn: buildStructure},
	}
}

// Signatures returns the arities Functions exposes, for compiler.New:
// a script can never compile a call the VM would later refuse to
// recognize.
func Signatures() map[string]compiler.FunctionSignature {
	return map[string]compiler.FunctionSignature{
		"console_log":     {Inputs: 1},
		"log_scalar":      {Inputs: 1},
		"move_bot":        {Inputs: 1},
		"make_point":      {Inputs: 2},
		"mine_resource":   {Inputs: 1},
		"drop_resource":   {Inputs: 1},
		"build_structure": {Inputs: 1},
	}
}

// readArgInt64 reads the i-th marshaled argument (8 bytes, little
// endian) out of the Call's input buffer.
func readArgInt64(v *vm.VM[*Aux], inPtr bytecode.TPointer, i int) (int64, *vm.ExecutionError) {
	buf, err := v.ReadArena(inPtr+bytecode.TPointer(i*bytecode.Int64ByteLen), bytecode.Int64ByteLen)
	if err != nil {
		return 0, err
	}
	v64, decErr := bytecode.DecodeInt64(buf)
	if decErr != nil {
		return 0, vm.NewExecutionError("scriptapi: %v", decErr)
	}
	return v64, nil
}

// readString decodes a LiteralArray-encoded string: an i64 count
// followed by that many i64 code points, one ASCII byte per element.
func readString(v *vm.VM[*Aux], ptr bytecode.TPointer) (string, *vm.ExecutionError) {
	countBuf, err := v.ReadArena(ptr, bytecode.Int64ByteLen)
	if err != nil {
		return "", err
	}
	count, decErr := bytecode.DecodeInt64(countBuf)
	if decErr != nil {
		return "", vm.NewExecutionError("scriptapi: %v", decErr)
	}
	out := make([]byte, 0, count)
	for i := int64(0); i < count; i++ {
		elemBuf, rerr := v.ReadArena(ptr+bytecode.TPointer(bytecode.Int64ByteLen)+bytecode.TPointer(i*int64(bytecode.Int64ByteLen)), bytecode.Int64ByteLen)
		if rerr != nil {
			return "", rerr
		}
		elem, derr := bytecode.DecodeInt64(elemBuf)
		if derr != nil {
			return "", vm.NewExecutionError("scriptapi: %v", derr)
		}
		out = append(out, byte(elem))
	}
	return string(out), nil
}

// consoleLog appends message (an arena-encoded string pointer) to the
// executing entity's log.
func consoleLog(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	msgPtr, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	message, err := readString(v, bytecode.TPointer(msgPtr))
	if err != nil {
		return 0, err
	}
	aux := v.Aux
	payload := fmt.Sprintf("Console log EntityId[%d]: %s", aux.Entity, message)
	aux.Buffer.Push(intents.LogIntent{Entity: aux.Entity, Time: aux.Tick, Payload: payload})
	return 0, nil
}

// logScalar appends value's raw int64 reading to the executing
// entity's log without attempting to decode it as a string.
func logScalar(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	value, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	aux := v.Aux
	payload := fmt.Sprintf("Entity [%d] says %d", aux.Entity, value)
	aux.Buffer.Push(intents.LogIntent{Entity: aux.Entity, Time: aux.Tick, Payload: payload})
	return 0, nil
}

// makePoint writes x and y as a two-element array at outPtr: the
// arena-native representation build_structure and move_bot both read
// points back from.
func makePoint(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	x, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	y, err := readArgInt64(v, inPtr, 1)
	if err != nil {
		return 0, err
	}
	if err := v.WriteArena(outPtr, bytecode.EncodeInt64(nil, x)); err != nil {
		return 0, err
	}
	if err := v.WriteArena(outPtr+bytecode.Int64ByteLen, bytecode.EncodeInt64(nil, y)); err != nil {
		return 0, err
	}
	return uint32(2 * bytecode.Int64ByteLen), nil
}

// moveBot decodes a point written by makePoint and pushes a MoveIntent
// for the executing entity; it writes an OperationResult status code
// to outPtr.
func moveBot(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	pointPtr, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	x, y, err := readPoint(v, bytecode.TPointer(pointPtr))
	if err != nil {
		return 0, err
	}

	aux := v.Aux
	aux.Buffer.Push(intents.MoveIntent{
		Entity:   aux.Entity,
		Position: geometry.Axial{Q: int32(x), R: int32(y)},
	})

	if err := v.WriteArena(outPtr, bytecode.EncodeInt64(nil, operationOk)); err != nil {
		return 0, err
	}
	return bytecode.Int64ByteLen, nil
}

// mineResource pushes a MineIntent naming the target resource entity;
// the extractable amount is resolved at apply time against the
// resource's remaining stock and the bot's carry headroom.
func mineResource(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	target, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	aux := v.Aux
	aux.Buffer.Push(intents.MineIntent{
		Bot:      aux.Entity,
		Resource: storage.EntityId(target),
	})
	if err := v.WriteArena(outPtr, bytecode.EncodeInt64(nil, operationOk)); err != nil {
		return 0, err
	}
	return bytecode.Int64ByteLen, nil
}

// dropResource pushes a DropIntent unloading the executing bot's carry
// into the target structure.
func dropResource(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	target, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	aux := v.Aux
	aux.Buffer.Push(intents.DropIntent{
		Bot:    aux.Entity,
		Target: storage.EntityId(target),
	})
	if err := v.WriteArena(outPtr, bytecode.EncodeInt64(nil, operationOk)); err != nil {
		return 0, err
	}
	return bytecode.Int64ByteLen, nil
}

// buildStructure decodes a point written by makePoint and pushes a
// BuildIntent for a new structure at that point in the executing
// entity's current room, owned by the executing entity's owner.
func buildStructure(v *vm.VM[*Aux], inPtr, outPtr bytecode.TPointer) (uint32, *vm.ExecutionError) {
	pointPtr, err := readArgInt64(v, inPtr, 0)
	if err != nil {
		return 0, err
	}
	x, y, err := readPoint(v, bytecode.TPointer(pointPtr))
	if err != nil {
		return 0, err
	}
	aux := v.Aux
	aux.Buffer.Push(intents.BuildIntent{
		Builder:  aux.Entity,
		Owner:    aux.Owner,
		Room:     aux.Room,
		Position: geometry.Axial{Q: int32(x), R: int32(y)},
	})
	if err := v.WriteArena(outPtr, bytecode.EncodeInt64(nil, operationOk)); err != nil {
		return 0, err
	}
	return bytecode.Int64ByteLen, nil
}

// readPoint reads the (x, y) pair makePoint wrote at ptr.
func readPoint(v *vm.VM[*Aux], ptr bytecode.TPointer) (int64, int64, *vm.ExecutionError) {
	xBuf, err := v.ReadArena(ptr, bytecode.Int64ByteLen)
	if err != nil {
		return 0, 0, err
	}
	yBuf, err := v.ReadArena(ptr+bytecode.Int64ByteLen, bytecode.Int64ByteLen)
	if err != nil {
		return 0, 0, err
	}
	x, decErr := bytecode.DecodeInt64(xBuf)
	if decErr != nil {
		return 0, 0, vm.NewExecutionError("scriptapi: %v", decErr)
	}
	y, decErr := bytecode.DecodeInt64(yBuf)
	if decErr != nil {
		return 0, 0, vm.NewExecutionError("scriptapi: %v", decErr)
	}
	return x, y, nil
}
