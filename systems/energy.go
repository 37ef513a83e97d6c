package systems

import "github.com/caolo/simcore/storage"

// Energy is an entity's current and maximum stored energy, regenerated
// each tick up to Max.
type Energy struct {
	Current     int32
	Max         int32
	RegenAmount int32
}

// EnergySystem regenerates every entity's energy toward its cap.
func EnergySystem(energy *storage.Table[storage.EntityId, Energy]) {
	energy.ForEach(func(id storage.EntityId, e Energy) bool {
		if e.Current < e.Max {
			e.Current += e.RegenAmount
			if e.Current > e.Max {
				e.Current = e.Max
			}
			energy.Insert(id, e)
		}
		return true
	})
}
