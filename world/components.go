package world

import (
	"fmt"
	"time"

	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// WorldPosition is the (room, point) pair every spatial operation is
// scoped to: rooms are addressed by their own axial coordinate, and
// every in-room position operation (distance, neighbours, pathfinding)
// happens entirely within one room's tables.
type WorldPosition struct {
	Room geometry.Axial
	Pos  geometry.Axial
}

// Carry is an entity's current and maximum carried resource amount.
type Carry struct {
	Amount int32
	Max    int32
}

// Resource is the quantity remaining at a resource entity.
type Resource struct {
	Amount int64
}

// TerrainKind classifies a terrain tile. Plain tiles are passable;
// Wall tiles block both pathfinding and occupancy.
type TerrainKind uint8

const (
	Plain TerrainKind = iota
	Wall
)

// Terrain is the per-point terrain component.
type Terrain struct {
	Kind TerrainKind
}

// IsWall implements pathfinder.Terrain's wall predicate.
func (t Terrain) IsWall() bool { return t.Kind == Wall }

// ScriptId identifies a persisted or in-memory compiled script.
type ScriptId string

// ScriptSource is the ASCII-rendered compilation unit (or a
// pre-compiled program's source text) as persisted by the script
// store and cached by script id.
type ScriptSource struct {
	Owner   storage.UserId
	Name    string
	Payload string
}

// UserProfile is the durable identity record behind a UserId; the
// JWKS `sub` claim maps onto Subject at first sight of a new bearer
// token.
type UserProfile struct {
	Subject     string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LogKey addresses the ordered log table by (entity, tick). It is a
// zero-padded string rather than a struct so it satisfies
// storage.Ordered and sorts by entity then tick, matching the
// component model's `(EntityId, Tick)` composite key.
type LogKey string

// NewLogKey builds the LogKey for entity's log entries at tick.
func NewLogKey(entity storage.EntityId, tick int64) LogKey {
	return LogKey(fmt.Sprintf("%020d:%020d", uint64(entity), tick))
}

// LogEntry is the ordered list of payloads an entity logged during one
// tick, appended in intent-emission order.
type LogEntry struct {
	Payloads []string
}
