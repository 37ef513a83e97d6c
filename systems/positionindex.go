package systems

import (
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// PositionEntry is one entity's current room and in-room point, the
// minimal shape RebuildPositionIndex needs regardless of how the
// caller's position component is laid out.
type PositionEntry struct {
	Entity storage.EntityId
	Room   geometry.Axial
	Point  geometry.Axial
}

// RebuildPositionIndex rebuilds the per-room entity-at-point tables
// from scratch given every entity's current position. Apply only ever
// writes an entity's Position component, so without this system the
// entity-at-point tables used for occupancy checks and pathfinding
// would drift out of sync after every move; rebuilding from the
// authoritative position table once per tick is cheaper than patching
// the old and new room's tables on every individual move intent.
//
// The returned map has one entry per room that currently has at least
// one occupant; rooms with no occupants are omitted so callers can
// distinguish "empty this tick" from "never touched".
func RebuildPositionIndex(entries []PositionEntry) map[geometry.Axial]*storage.SpatialTable[storage.EntityId] {
	byRoom := make(map[geometry.Axial][]storage.Entry[storage.EntityId])
	for _, e := range entries {
		byRoom[e.Room] = append(byRoom[e.Room], storage.Entry[storage.EntityId]{Point: e.Point, Value: e.Entity})
	}
	out := make(map[geometry.Axial]*storage.SpatialTable[storage.EntityId], len(byRoom))
	for room, es := range byRoom {
		out[room] = storage.SpatialTableFromIterator(es)
	}
	return out
}
