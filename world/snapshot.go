package world

import (
	"fmt"
	"sort"

	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// roomDisplayRadius bounds how much of a room's hexagon the snapshot
// reports as terrain.roomLayout. Rooms themselves are unbounded (any
// axial point may carry a terrain or entity component), but a client
// only ever needs to render the area it can plausibly see.
const roomDisplayRadius = 16

// Point is the wire representation of an Axial coordinate.
type Point struct {
	Q int32 `json:"q"`
	R int32 `json:"r"`
}

func pointOf(a geometry.Axial) Point { return Point{Q: a.Q, R: a.R} }

// roomKey formats a as the "q;r" string every snapshot map is keyed
// by, the wire convention clients use for room addresses throughout
// the HTTP surface too (the terrain endpoint's room parameter).
func roomKey(a geometry.Axial) string { return fmt.Sprintf("%d;%d", a.Q, a.R) }

// BotSnapshot is one bot entity's externally visible state.
type BotSnapshot struct {
	Id     uint64  `json:"id"`
	Owner  string  `json:"owner"`
	Pos    Point   `json:"pos"`
	Hp     int32   `json:"hp"`
	Energy int32   `json:"energy"`
	Carry  int32   `json:"carry"`
	Script *string `json:"scriptId,omitempty"`
}

// StructureSnapshot is one structure entity's externally visible
// state, including spawn progress if it is currently producing a bot.
type StructureSnapshot struct {
	Id               uint64 `json:"id"`
	Owner            string `json:"owner"`
	Pos              Point  `json:"pos"`
	SpawnProgress    int32  `json:"spawnProgress,omitempty"`
	SpawnRequired    int32  `json:"spawnRequired,omitempty"`
}

// ResourceSnapshot is one resource entity's externally visible state.
type ResourceSnapshot struct {
	Id     uint64 `json:"id"`
	Pos    Point  `json:"pos"`
	Amount int64  `json:"amount"`
}

// UserSnapshot is the subset of a user's profile visible to clients
// watching a room they have entities in.
type UserSnapshot struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// TerrainSnapshot is one room's wall set plus the bounding hexagon
// clients should render even where no wall tile exists.
type TerrainSnapshot struct {
	Walls      []Point `json:"walls"`
	RoomLayout []Point `json:"roomLayout"`
}

// SnapshotDoc is the full per-tick world projection pushed to
// websocket clients and served by GET /world. Every table is grouped
// by room; VM-internal state (pathfinder caches, compiled bytecode)
// never appears here.
type SnapshotDoc struct {
	Tick       int64                          `json:"tick"`
	Rooms      []string                       `json:"rooms"`
	Bots       map[string][]BotSnapshot       `json:"bots"`
	Structures map[string][]StructureSnapshot `json:"structures"`
	Resources  map[string][]ResourceSnapshot  `json:"resources"`
	Users      map[string][]UserSnapshot      `json:"users"`
	Terrain    map[string]TerrainSnapshot     `json:"terrain"`
}

// Snapshot projects world into a SnapshotDoc. It never mutates world
// and is safe to call concurrently with another Snapshot call, but not
// with a running tick (callers serialize it under the same read lock
// the gateway holds while World@t+1 is being published).
func Snapshot(w *World) SnapshotDoc {
	doc := SnapshotDoc{
		Tick:       w.Time,
		Bots:       make(map[string][]BotSnapshot),
		Structures: make(map[string][]StructureSnapshot),
		Resources:  make(map[string][]ResourceSnapshot),
		Users:      make(map[string][]UserSnapshot),
		Terrain:    make(map[string]TerrainSnapshot),
	}

	roomOwners := make(map[string]map[storage.UserId]struct{})
	addOwner := func(room string, owner storage.UserId) {
		set, ok := roomOwners[room]
		if !ok {
			set = make(map[storage.UserId]struct{})
			roomOwners[room] = set
		}
		set[owner] = struct{}{}
	}

	w.Position.ForEach(func(id storage.EntityId, pos WorldPosition) bool {
		room := roomKey(pos.Room)
		owner, _ := w.OwnedBy.Get(id)

		if w.BotMarker.Contains(id) {
			bot := BotSnapshot{Id: uint64(id), Owner: owner.String(), Pos: pointOf(pos.Pos)}
			if hp, ok := w.Hp.Get(id); ok {
				bot.Hp = hp.Value
			}
			if energy, ok := w.Energy.Get(id); ok {
				bot.Energy = energy.Current
			}
			if carry, ok := w.Carry.Get(id); ok {
				bot.Carry = carry.Amount
			}
			if script, ok := w.ScriptRef.Get(id); ok {
				s := string(script)
				bot.Script = &s
			}
			doc.Bots[room] = append(doc.Bots[room], bot)
			addOwner(room, owner)
		}

		if w.StructureMarker.Contains(id) {
			structure := StructureSnapshot{Id: uint64(id), Owner: owner.String(), Pos: pointOf(pos.Pos)}
			if sp, ok := w.SpawnProgress.Get(id); ok {
				structure.SpawnProgress = sp.Progress
				structure.SpawnRequired = sp.Required
			}
			doc.Structures[room] = append(doc.Structures[room], structure)
			addOwner(room, owner)
		}

		if w.ResourceMarker.Contains(id) {
			resource := ResourceSnapshot{Id: uint64(id), Pos: pointOf(pos.Pos)}
			if r, ok := w.Resource.Get(id); ok {
				resource.Amount = r.Amount
			}
			doc.Resources[room] = append(doc.Resources[room], resource)
		}

		return true
	})

	// Rooms live in a Go map; sort the addresses so the emitted
	// document is identical for identical world state.
	roomAddrs := make([]geometry.Axial, 0, len(w.Rooms))
	for room := range w.Rooms {
		roomAddrs = append(roomAddrs, room)
	}
	sort.Slice(roomAddrs, func(i, j int) bool {
		if roomAddrs[i].Q != roomAddrs[j].Q {
			return roomAddrs[i].Q < roomAddrs[j].Q
		}
		return roomAddrs[i].R < roomAddrs[j].R
	})

	for _, room := range roomAddrs {
		r := w.Rooms[room]
		key := roomKey(room)
		doc.Rooms = append(doc.Rooms, key)

		var walls []Point
		for _, entry := range r.Terrain.Entries() {
			if entry.Value.IsWall() {
				walls = append(walls, pointOf(entry.Point))
			}
		}
		layout := geometry.Hexagon(geometry.Axial{}, roomDisplayRadius)
		points := make([]Point, len(layout))
		for i, p := range layout {
			points[i] = pointOf(p)
		}
		doc.Terrain[key] = TerrainSnapshot{Walls: walls, RoomLayout: points}
	}

	for room, owners := range roomOwners {
		ids := make([]storage.UserId, 0, len(owners))
		for owner := range owners {
			ids = append(ids, owner)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, owner := range ids {
			profile, ok := w.Users.Get(owner)
			if !ok {
				continue
			}
			doc.Users[room] = append(doc.Users[room], UserSnapshot{Id: owner.String(), DisplayName: profile.DisplayName})
		}
	}

	return doc
}
