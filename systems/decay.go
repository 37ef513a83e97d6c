// Package systems implements the fixed-order per-tick world updates:
// decay, energy regeneration, spawn progress, and position-index
// rebuild. Every system here runs sequentially and deterministically;
// none of them touch the intent pipeline, since they mutate component
// tables directly rather than proposing changes a script could
// conflict with.
package systems

import (
	"github.com/caolo/simcore/storage"
)

// Hp is an entity's current hit points.
type Hp struct {
	Value int32
}

// Decay counts down to zero, then begins subtracting from Hp each
// tick it stays at zero.
type Decay struct {
	T         int32
	ResetTo   int32
	HpPerTick int32
}

// DecaySystem ticks every entity with both an Hp and a Decay component.
// Entities whose Decay timer has reached zero lose HpPerTick; entities
// whose Hp reaches zero are removed via deleter.
func DecaySystem(hp *storage.Table[storage.EntityId, Hp], decay *storage.Table[storage.EntityId, Decay], deleter *storage.DeleteEntityView) {
	it := storage.Join(hp, decay)
	var toDelete []storage.EntityId
	for {
		id, h, d, ok := it.Next()
		if !ok {
			break
		}
		if d.T > 0 {
			d.T--
			decay.Insert(id, d)
			continue
		}
		d.T = d.ResetTo
		h.Value -= d.HpPerTick
		if h.Value <= 0 {
			toDelete = append(toDelete, id)
			continue
		}
		hp.Insert(id, h)
		decay.Insert(id, d)
	}
	for _, id := range toDelete {
		hp.Delete(id)
		decay.Delete(id)
		deleter.Delete(id)
	}
}
