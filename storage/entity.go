// Package storage implements the ECS-style component tables the tick
// engine reads and writes: ordered dictionaries keyed by entity or user
// id, and Morton spatial tables keyed by axial position.
package storage

import "github.com/google/uuid"

// EntityId identifies a single simulated entity (bot, structure or
// resource): an opaque 64-bit integer, allocated monotonically and
// never reused within a running World.
type EntityId uint64

// UserId identifies the owner of a script and the bots it spawns. It is
// the subject of an authenticated identity, not a database primary key.
// It is stored as the canonical UUID string form so it satisfies
// Ordered and sorts the same way its textual representation does.
type UserId string

// NewUserId converts a parsed UUID into a UserId.
func NewUserId(id uuid.UUID) UserId { return UserId(id.String()) }

// UUID parses the UserId back into a uuid.UUID. It panics if the
// UserId was not constructed from a valid UUID, which would indicate a
// programming error rather than bad input.
func (u UserId) UUID() uuid.UUID {
	id, err := uuid.Parse(string(u))
	if err != nil {
		panic("storage: invalid UserId: " + err.Error())
	}
	return id
}

func (u UserId) String() string { return string(u) }
