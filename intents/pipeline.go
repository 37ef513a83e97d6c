package intents

import (
	"sort"

	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

// Target receives intents during the fixed-order apply stage. The
// simulation's World implements this so intents never need to know
// anything about component tables directly. Every Apply method
// re-validates its intent against the world state it sees, so a
// survivor of Reduce that has since become impossible (its resource
// mined out by an earlier stage, its build site occupied) silently
// becomes a no-op rather than corrupting a table.
type Target interface {
	ApplyLog(LogIntent)
	ApplyMove(MoveIntent)
	ApplyMine(MineIntent)
	ApplyDrop(DropIntent)
	ApplyBuild(BuildIntent)
	ApplySpawn(SpawnIntent)
	ApplyDelete(DeleteIntent)
}

// MoveValidator is implemented by the world snapshot Reduce checks
// every proposed move against before it is ever allowed to compete
// for a destination or reach Apply. The simulation's World implements
// this against the tick's pre-apply snapshot: the entity-at-point
// table is only rebuilt after Apply finishes, so it still reflects
// every entity's position as of the start of this tick.
type MoveValidator interface {
	// CanOccupy reports whether mover may move to pos in mover's
	// current room: pos must exist on the map, must not be a Wall
	// tile, and must not already be occupied by a different entity in
	// the pre-apply snapshot.
	CanOccupy(mover storage.EntityId, pos geometry.Axial) bool
}

// Reduce validates every proposed intent against validator's
// pre-apply world snapshot, then resolves conflicts within the
// surviving batch so Apply never has to make an ordering decision
// itself. A move that fails validation (off the map, onto a wall, or
// onto a point a different, non-moving entity still occupies) is
// dropped before it can compete for a destination at all. Conflict
// rules, each deterministic:
//   - Two surviving moves targeting the same destination cell resolve
//     last-write-wins: moves is built in the batch's ascending-EntityId
//     collection order, so the later entry for a destination simply
//     overwrites the earlier one.
//   - Two mines naming the same resource resolve to the lowest Bot id;
//     a resource funds at most one extraction per tick.
//   - Two drops from the same bot resolve to the first collected (a
//     bot empties its carry at most once per tick).
//   - Two builds naming the same (room, position) resolve to the
//     lowest Builder id.
//   - Logs accumulate; spawns and deletes never conflict.
func Reduce(validator MoveValidator, batch []Intent) []Intent {
	var moves []MoveIntent
	var mines []MineIntent
	var drops []DropIntent
	var builds []BuildIntent
	var rest []Intent

	for _, it := range batch {
		switch v := it.(type) {
		case MoveIntent:
			if validator.CanOccupy(v.Entity, v.Position) {
				moves = append(moves, v)
			}
		case MineIntent:
			mines = append(mines, v)
		case DropIntent:
			drops = append(drops, v)
		case BuildIntent:
			builds = append(builds, v)
		default:
			rest = append(rest, it)
		}
	}

	winningMoves := resolveMoveConflicts(moves)
	winningMines := resolveMineConflicts(mines)
	winningDrops := resolveDropConflicts(drops)
	winningBuilds := resolveBuildConflicts(builds)

	out := make([]Intent, 0, len(rest)+len(winningMoves)+len(winningMines)+len(winningDrops)+len(winningBuilds))
	out = append(out, rest...)
	for _, m := range winningMoves {
		out = append(out, m)
	}
	for _, m := range winningMines {
		out = append(out, m)
	}
	for _, d := range winningDrops {
		out = append(out, d)
	}
	for _, b := range winningBuilds {
		out = append(out, b)
	}
	return out
}

func resolveMoveConflicts(moves []MoveIntent) []MoveIntent {
	byDest := make(map[[2]int32]MoveIntent)
	for _, m := range moves {
		key := [2]int32{m.Position.Q, m.Position.R}
		// Last-write-wins: moves is in ascending-EntityId collection
		// order, so each later entry for the same destination is the
		// later write and simply overwrites the earlier one.
		byDest[key] = m
	}
	out := make([]MoveIntent, 0, len(byDest))
	for _, m := range byDest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

func resolveMineConflicts(mines []MineIntent) []MineIntent {
	byResource := make(map[storage.EntityId]MineIntent)
	for _, m := range mines {
		winner, exists := byResource[m.Resource]
		if !exists || m.Bot < winner.Bot {
			byResource[m.Resource] = m
		}
	}
	out := make([]MineIntent, 0, len(byResource))
	for _, m := range byResource {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bot < out[j].Bot })
	return out
}

func resolveDropConflicts(drops []DropIntent) []DropIntent {
	byBot := make(map[storage.EntityId]DropIntent)
	for _, d := range drops {
		if _, exists := byBot[d.Bot]; !exists {
			byBot[d.Bot] = d
		}
	}
	out := make([]DropIntent, 0, len(byBot))
	for _, d := range byBot {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bot < out[j].Bot })
	return out
}

func resolveBuildConflicts(builds []BuildIntent) []BuildIntent {
	type site struct {
		room [2]int32
		pos  [2]int32
	}
	bySite := make(map[site]BuildIntent)
	for _, b := range builds {
		key := site{room: [2]int32{b.Room.Q, b.Room.R}, pos: [2]int32{b.Position.Q, b.Position.R}}
		winner, exists := bySite[key]
		if !exists || b.Builder < winner.Builder {
			bySite[key] = b
		}
	}
	out := make([]BuildIntent, 0, len(bySite))
	for _, b := range bySite {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Builder < out[j].Builder })
	return out
}

// Apply commits a reduced batch to target in a fixed stage order: logs
// first, then movement, then resource transfers (mines, then drops),
// then builds, spawns and deletes. This order is what makes two
// entities swapping positions in the same tick observe each other's
// pre-move state in their logs, and what keeps a deleted entity from
// being resurrected by a late spawn in the same stage.
func Apply(target Target, batch []Intent) {
	for _, it := range batch {
		if l, ok := it.(LogIntent); ok {
			target.ApplyLog(l)
		}
	}
	for _, it := range batch {
		if m, ok := it.(MoveIntent); ok {
			target.ApplyMove(m)
		}
	}
	for _, it := range batch {
		if m, ok := it.(MineIntent); ok {
			target.ApplyMine(m)
		}
	}
	for _, it := range batch {
		if d, ok := it.(DropIntent); ok {
			target.ApplyDrop(d)
		}
	}
	for _, it := range batch {
		if b, ok := it.(BuildIntent); ok {
			target.ApplyBuild(b)
		}
	}
	for _, it := range batch {
		if s, ok := it.(SpawnIntent); ok {
			target.ApplySpawn(s)
		}
	}
	for _, it := range batch {
		if d, ok := it.(DeleteIntent); ok {
			target.ApplyDelete(d)
		}
	}
}
