// Package engine implements the tick orchestrator: the single
// deterministic entry point that advances a World by one step,
// running script collection, intent reduction, fixed-order apply, and
// system updates before advancing the clock.
package engine

import (
	"fmt"

	"github.com/caolo/simcore/intents"
	"github.com/caolo/simcore/scriptapi"
	"github.com/caolo/simcore/storage"
	"github.com/caolo/simcore/vm"
	"github.com/caolo/simcore/world"
)

// ScriptError reports that one entity's script aborted mid-execution.
// It never aborts the tick: whatever that entity had already emitted
// before the failing instruction is still collected, matching the
// per-entity isolation stage 1 requires.
type ScriptError struct {
	Entity storage.EntityId
	Err    *vm.ExecutionError
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("entity %d: %v", e.Entity, e.Err)
}

// Forward advances world by exactly one tick: collect, reduce, apply,
// system updates, position-index rebuild, clock advance, in that
// fixed order. A non-nil error means one or more scripts aborted; the
// mutations every stage already performed are not rolled back and the
// clock still does not advance, matching the no-transactional-rollback
// contract.
func Forward(w *world.World) error {
	batch, scriptErrs := collect(w)

	reduced := intents.Reduce(w, batch)
	intents.Apply(w, reduced)

	w.RunSystems()
	w.RebuildPositionIndex()

	if len(scriptErrs) > 0 {
		return scriptErrs[0]
	}

	w.Time++
	return nil
}

// collect runs every scripted entity's compiled program against a
// fresh VM per root and drains its intent buffer. Entities are
// visited in ascending EntityId order (ScriptRef.ForEach's iteration
// order), which is also the deterministic tie-break order Reduce
// relies on. A script with several independent root graphs runs every
// root — compiler.Compile already orders them ascending by NodeId, so
// that fixed order is also the per-entity intra-entity run order.
func collect(w *world.World) ([]intents.Intent, []error) {
	var buffers []*intents.Buffer
	var errs []error

	functions := scriptapi.Functions()

	w.ScriptRef.ForEach(func(entity storage.EntityId, scriptId world.ScriptId) bool {
		program, ok := w.Programs.Get(scriptId)
		if !ok {
			return true
		}
		owner, ok := w.OwnedBy.Get(entity)
		if !ok {
			return true
		}

		pos, _ := w.Position.Get(entity)

		buf := &intents.Buffer{}
		aux := &scriptapi.Aux{Entity: entity, Owner: owner, Room: pos.Room, Tick: w.Time, Buffer: buf}

		for _, root := range program.Roots {
			machine := vm.New(root.Bytecode, functions, aux)
			if _, execErr := machine.Run(0); execErr != nil {
				errs = append(errs, &ScriptError{Entity: entity, Err: execErr})
			}
		}
		buffers = append(buffers, buf)
		return true
	})

	return intents.Merge(buffers...), errs
}
