// Package world assembles the fixed set of named component tables the
// tick engine reads and writes into a single World value, and
// implements the intents.Target contract that commits a reduced
// intent batch to those tables in the pipeline's fixed apply order.
package world

import (
	"github.com/caolo/simcore/compiler"
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/intents"
	"github.com/caolo/simcore/pathfinder"
	"github.com/caolo/simcore/storage"
	"github.com/caolo/simcore/systems"
)

// defaultHpMax and defaultEnergyMax seed newly spawned bots; a real
// deployment would source these from the owning structure's
// configuration, but the component model has no such table yet.
// defaultSpawnTime is how many ticks a freshly built structure needs
// to produce its first bot.
const (
	defaultHpMax     = 100
	defaultEnergyMax = 100
	defaultSpawnTime = 10
)

// Room holds the per-room spatial tables: terrain never changes after
// bootstrap, entity-at-point is rebuilt every tick by the
// position-index system.
type Room struct {
	Terrain  *storage.SpatialTable[Terrain]
	EntityAt *storage.SpatialTable[storage.EntityId]
}

// World is the complete, fixed set of component tables a running
// simulation operates on. Adding a component type means adding a field
// here, not a runtime registration call.
type World struct {
	Time int64

	Rooms map[geometry.Axial]*Room

	Position        *storage.Table[storage.EntityId, WorldPosition]
	BotMarker       *storage.Table[storage.EntityId, struct{}]
	StructureMarker *storage.Table[storage.EntityId, struct{}]
	Carry           *storage.Table[storage.EntityId, Carry]
	Hp              *storage.Table[storage.EntityId, systems.Hp]
	Decay           *storage.Table[storage.EntityId, systems.Decay]
	Energy          *storage.Table[storage.EntityId, systems.Energy]
	SpawnProgress   *storage.Table[storage.EntityId, systems.SpawnProgress]
	OwnedBy         *storage.Table[storage.EntityId, storage.UserId]
	Resource        *storage.Table[storage.EntityId, Resource]
	ResourceMarker  *storage.Table[storage.EntityId, struct{}]
	ScriptRef       *storage.Table[storage.EntityId, ScriptId]

	Users    *storage.Table[storage.UserId, UserProfile]
	Log      *storage.Table[LogKey, LogEntry]
	Scripts  *storage.Table[ScriptId, ScriptSource]
	Programs *storage.Table[ScriptId, *compiler.Program]

	deleter *storage.DeleteEntityView
	nextId  uint64
}

// New returns an empty World with every component table constructed.
func New() *World {
	w := &World{
		Rooms:           make(map[geometry.Axial]*Room),
		Position:        storage.NewTable[storage.EntityId, WorldPosition](),
		BotMarker:       storage.NewTable[storage.EntityId, struct{}](),
		StructureMarker: storage.NewTable[storage.EntityId, struct{}](),
		Carry:           storage.NewTable[storage.EntityId, Carry](),
		Hp:              storage.NewTable[storage.EntityId, systems.Hp](),
		Decay:           storage.NewTable[storage.EntityId, systems.Decay](),
		Energy:          storage.NewTable[storage.EntityId, systems.Energy](),
		SpawnProgress:   storage.NewTable[storage.EntityId, systems.SpawnProgress](),
		OwnedBy:         storage.NewTable[storage.EntityId, storage.UserId](),
		Resource:        storage.NewTable[storage.EntityId, Resource](),
		ResourceMarker:  storage.NewTable[storage.EntityId, struct{}](),
		ScriptRef:       storage.NewTable[storage.EntityId, ScriptId](),
		Users:           storage.NewTable[storage.UserId, UserProfile](),
		Log:             storage.NewTable[LogKey, LogEntry](),
		Scripts:         storage.NewTable[ScriptId, ScriptSource](),
		Programs:        storage.NewTable[ScriptId, *compiler.Program](),
	}
	w.deleter = storage.NewDeleteEntityView(
		w.Position, w.BotMarker, w.StructureMarker, w.Carry, w.Hp, w.Decay,
		w.Energy, w.SpawnProgress, w.OwnedBy, w.Resource, w.ResourceMarker, w.ScriptRef,
	)
	return w
}

// roomTerrain adapts a Room's terrain table to pathfinder.Terrain. A
// point that was never given a terrain tile does not exist on the map;
// one that was given a Wall tile exists but blocks travel.
type roomTerrain struct{ room *Room }

func (t roomTerrain) Contains(p geometry.Axial) bool {
	return t.room.Terrain.Contains(p)
}

func (t roomTerrain) IsWall(p geometry.Axial) bool {
	tile, ok := t.room.Terrain.Get(p)
	return ok && tile.IsWall()
}

// roomOccupancy adapts a Room's entity-at-point table to
// pathfinder.Occupancy.
type roomOccupancy struct{ room *Room }

func (o roomOccupancy) Contains(p geometry.Axial) bool {
	return o.room.EntityAt.Contains(p)
}

// PathTerrain returns r's pathfinder.Terrain view.
func (r *Room) PathTerrain() pathfinder.Terrain { return roomTerrain{room: r} }

// PathOccupancy returns r's pathfinder.Occupancy view.
func (r *Room) PathOccupancy() pathfinder.Occupancy { return roomOccupancy{room: r} }

// Room returns the room at p, creating an empty one (no terrain, no
// occupants) if this is the first time it has been addressed.
func (w *World) Room(room geometry.Axial) *Room {
	r, ok := w.Rooms[room]
	if !ok {
		r = &Room{
			Terrain:  storage.NewSpatialTable[Terrain](),
			EntityAt: storage.NewSpatialTable[storage.EntityId](),
		}
		w.Rooms[room] = r
	}
	return r
}

// AllocateEntity returns a fresh EntityId. Ids are handed out
// monotonically and never reused within a World's lifetime, even
// across entity deletion.
func (w *World) AllocateEntity() storage.EntityId {
	w.nextId++
	return storage.EntityId(w.nextId)
}

// DeleteEntity removes id from every component table, including its
// entity-at-point row in whichever room its position component
// pointed at. DeleteEntityView alone cannot do this last part since
// entity-at-point is keyed by point, not id.
func (w *World) DeleteEntity(id storage.EntityId) {
	if pos, ok := w.Position.Get(id); ok {
		w.Room(pos.Room).EntityAt.Delete(pos.Pos)
	}
	w.deleter.Delete(id)
}

// CanOccupy implements intents.MoveValidator against this tick's
// pre-apply snapshot: EntityAt is only rebuilt after Apply finishes
// (RebuildPositionIndex), so it still reflects every entity's position
// as of the start of this tick, not any move Apply has committed so
// far this tick.
func (w *World) CanOccupy(mover storage.EntityId, pos geometry.Axial) bool {
	current, ok := w.Position.Get(mover)
	if !ok {
		return false
	}
	room := w.Room(current.Room)
	tile, ok := room.Terrain.Get(pos)
	if !ok || tile.IsWall() {
		return false
	}
	if occupant, ok := room.EntityAt.Get(pos); ok && occupant != mover {
		return false
	}
	return true
}

// ApplyLog implements intents.Target.
func (w *World) ApplyLog(l intents.LogIntent) {
	key := NewLogKey(l.Entity, l.Time)
	entry, _ := w.Log.Get(key)
	entry.Payloads = append(entry.Payloads, l.Payload)
	w.Log.Insert(key, entry)
}

// ApplyMove implements intents.Target. The entity's old
// entity-at-point row is left for the position-index rebuild system to
// reconcile; this keeps Apply's per-intent cost independent of
// how many rooms an entity has visited.
func (w *World) ApplyMove(m intents.MoveIntent) {
	pos, ok := w.Position.Get(m.Entity)
	if !ok {
		return
	}
	pos.Pos = m.Position
	w.Position.Insert(m.Entity, pos)
}

// ApplyMine implements intents.Target: moves as much of the resource's
// remaining amount into the bot's carry as the carry's headroom
// allows. The transferable amount is derived here, against the world
// state this stage sees, never trusted from the emitting script. A
// resource mined down to zero is deleted outright.
func (w *World) ApplyMine(m intents.MineIntent) {
	res, ok := w.Resource.Get(m.Resource)
	if !ok || res.Amount <= 0 {
		return
	}
	carry, ok := w.Carry.Get(m.Bot)
	if !ok {
		return
	}
	transferable := res.Amount
	if headroom := int64(carry.Max - carry.Amount); transferable > headroom {
		transferable = headroom
	}
	if transferable <= 0 {
		return
	}
	res.Amount -= transferable
	carry.Amount += int32(transferable)
	w.Carry.Insert(m.Bot, carry)
	if res.Amount == 0 {
		w.DeleteEntity(m.Resource)
		return
	}
	w.Resource.Insert(m.Resource, res)
}

// ApplyDrop implements intents.Target: unloads the bot's full carried
// amount into the target structure's store, clamped by the target's
// remaining capacity.
func (w *World) ApplyDrop(d intents.DropIntent) {
	carry, ok := w.Carry.Get(d.Bot)
	if !ok || carry.Amount <= 0 {
		return
	}
	store, ok := w.Carry.Get(d.Target)
	if !ok {
		return
	}
	transferable := carry.Amount
	if headroom := store.Max - store.Amount; transferable > headroom {
		transferable = headroom
	}
	if transferable <= 0 {
		return
	}
	carry.Amount -= transferable
	store.Amount += transferable
	w.Carry.Insert(d.Bot, carry)
	w.Carry.Insert(d.Target, store)
}

// ApplyBuild implements intents.Target: erects a structure at the
// intent's site unless the site is off the map, a wall, or already
// holds an entity in the pre-rebuild occupancy snapshot. A fresh
// structure immediately begins a spawn cycle for its owner.
func (w *World) ApplyBuild(b intents.BuildIntent) {
	room := w.Room(b.Room)
	tile, ok := room.Terrain.Get(b.Position)
	if !ok || tile.IsWall() {
		return
	}
	if room.EntityAt.Contains(b.Position) {
		return
	}
	id := w.AllocateEntity()
	w.StructureMarker.Insert(id, struct{}{})
	w.OwnedBy.Insert(id, b.Owner)
	w.Position.Insert(id, WorldPosition{Room: b.Room, Pos: b.Position})
	w.Hp.Insert(id, systems.Hp{Value: defaultHpMax})
	w.Carry.Insert(id, Carry{Max: int32(defaultEnergyMax)})
	w.SpawnProgress.Insert(id, systems.SpawnProgress{
		Required: defaultSpawnTime,
		Room:     b.Room,
		Position: b.Position,
		Owner:    b.Owner,
	})
	room.EntityAt.Insert(b.Position, id)
}

// ApplySpawn implements intents.Target: materialises a new bot entity
// owned by the intent's owner at its room and position.
func (w *World) ApplySpawn(s intents.SpawnIntent) {
	id := w.AllocateEntity()
	w.BotMarker.Insert(id, struct{}{})
	w.OwnedBy.Insert(id, s.Owner)
	w.Position.Insert(id, WorldPosition{Room: s.Room, Pos: s.Position})
	w.Hp.Insert(id, systems.Hp{Value: defaultHpMax})
	w.Energy.Insert(id, systems.Energy{Current: defaultEnergyMax, Max: defaultEnergyMax, RegenAmount: 1})
}

// ApplyDelete implements intents.Target.
func (w *World) ApplyDelete(d intents.DeleteIntent) {
	w.DeleteEntity(d.Entity)
}

// RebuildPositionIndex replaces every room's entity-at-point table
// with a fresh one built from the current Position table. It runs
// after every tick's Apply stage so occupancy and pathfinding queries
// never see a position that Apply already committed but the spatial
// index hasn't caught up to.
func (w *World) RebuildPositionIndex() {
	var entries []systems.PositionEntry
	w.Position.ForEach(func(id storage.EntityId, pos WorldPosition) bool {
		entries = append(entries, systems.PositionEntry{Entity: id, Room: pos.Room, Point: pos.Pos})
		return true
	})
	fresh := systems.RebuildPositionIndex(entries)
	for room := range w.Rooms {
		if _, ok := fresh[room]; !ok {
			w.Room(room).EntityAt = storage.NewSpatialTable[storage.EntityId]()
		}
	}
	for room, table := range fresh {
		w.Room(room).EntityAt = table
	}
}

// RunSystems advances every per-tick system update in fixed order:
// decay, energy regeneration, spawn progress. Spawn progress completing
// materialises the new bot directly (via ApplySpawn) rather than
// enqueuing an intent, since systems run after this tick's apply stage
// has already finished.
func (w *World) RunSystems() {
	systems.DecaySystem(w.Hp, w.Decay, w.deleter)
	systems.EnergySystem(w.Energy)
	for _, r := range systems.SpawnSystem(w.SpawnProgress) {
		w.ApplySpawn(intents.SpawnIntent{Owner: r.Owner, Room: r.Room, Position: r.Position})
	}
}
