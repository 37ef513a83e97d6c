package systems

import (
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// SpawnProgress tracks an in-progress bot spawn at a structure. Room
// and Position are the structure's own site: the finished bot
// inherits them along with Owner.
type SpawnProgress struct {
	Progress int32
	Required int32
	Room     geometry.Axial
	Position geometry.Axial
	Owner    storage.UserId
}

// Ready is a structure whose spawn progress just completed this tick,
// returned by SpawnSystem so the caller can turn it into a SpawnIntent
// without SpawnSystem needing to know about the intent pipeline.
type Ready struct {
	Entity   storage.EntityId
	Room     geometry.Axial
	Position geometry.Axial
	Owner    storage.UserId
}

// SpawnSystem advances every structure's spawn counter by one tick and
// returns the structures that completed this tick, clearing their
// progress back to zero so the next spawn cycle starts fresh.
func SpawnSystem(progress *storage.Table[storage.EntityId, SpawnProgress]) []Ready {
	var ready []Ready
	progress.ForEach(func(id storage.EntityId, p SpawnProgress) bool {
		p.Progress++
		if p.Progress >= p.Required {
			ready = append(ready, Ready{Entity: id, Room: p.Room, Position: p.Position, Owner: p.Owner})
			p.Progress = 0
		}
		progress.Insert(id, p)
		return true
	})
	return ready
}
