// Package intents implements the two-phase intent pipeline: systems and
// scripts collect intents against a read-only world view, a reduce
// stage resolves conflicts, and a fixed-order apply stage commits the
// survivors to the mutable world.
package intents

import (
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// Kind identifies the category of an intent, used for apply ordering.
type Kind int

const (
	KindLog Kind = iota
	KindMove
	KindMine
	KindDrop
	KindBuild
	KindSpawn
	KindDelete
)

// Intent is any pending world mutation produced by script execution or
// a system during a tick.
type Intent interface {
	Kind() Kind
}

// LogIntent appends payload to the entity's log at the given tick
// time.
type LogIntent struct {
	Entity  storage.EntityId
	Time    int64
	Payload string
}

func (LogIntent) Kind() Kind { return KindLog }

// MoveIntent requests that Entity's position become Position.
type MoveIntent struct {
	Entity   storage.EntityId
	Position geometry.Axial
}

func (MoveIntent) Kind() Kind { return KindMove }

// MineIntent requests that Bot extract from Resource as much as its
// carry headroom and the resource's remaining amount allow. The
// amount is not fixed at emission time: it is re-derived against
// world state when the intent is applied, so a mine emitted against a
// stale resource reading never over-draws.
type MineIntent struct {
	Bot      storage.EntityId
	Resource storage.EntityId
}

func (MineIntent) Kind() Kind { return KindMine }

// DropIntent requests that Bot unload its full carried amount into
// Target's store, clamped by Target's remaining capacity at apply
// time.
type DropIntent struct {
	Bot    storage.EntityId
	Target storage.EntityId
}

func (DropIntent) Kind() Kind { return KindDrop }

// BuildIntent requests a new structure owned by Owner at Position in
// Room, erected by Builder.
type BuildIntent struct {
	Builder  storage.EntityId
	Owner    storage.UserId
	Room     geometry.Axial
	Position geometry.Axial
}

func (BuildIntent) Kind() Kind { return KindBuild }

// SpawnIntent requests a new bot be created for Owner at Position in
// Room.
type SpawnIntent struct {
	Owner    storage.UserId
	Room     geometry.Axial
	Position geometry.Axial
}

func (SpawnIntent) Kind() Kind { return KindSpawn }

// DeleteIntent requests Entity be removed from the world.
type DeleteIntent struct {
	Entity storage.EntityId
}

func (DeleteIntent) Kind() Kind { return KindDelete }

// Buffer is a thread-local accumulator for intents produced during the
// parallelizable collect phase. Each script execution gets its own
// Buffer so collection never needs cross-goroutine synchronization;
// buffers are merged once collection finishes.
type Buffer struct {
	items []Intent
}

// Push appends an intent.
func (b *Buffer) Push(i Intent) { b.items = append(b.items, i) }

// Items returns the buffered intents.
func (b *Buffer) Items() []Intent { return b.items }

// Merge concatenates n buffers, in argument order, into a single
// batch. Collection order matters only as a deterministic tie-break
// downstream, so callers should pass buffers in a stable order (e.g.
// sorted by owning entity id).
func Merge(buffers ...*Buffer) []Intent {
	var out []Intent
	for _, b := range buffers {
		out = append(out, b.items...)
	}
	return out
}
