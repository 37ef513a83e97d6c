// Package pathfinder implements deterministic hex-grid A* search over
// terrain and occupancy views supplied by the simulation.
package pathfinder

import (
	"container/heap"

	"github.com/caolo/simcore/geometry"
)

// Terrain reports which points exist on the map and which are
// walls, impassable except as the path's destination.
type Terrain interface {
	Contains(p geometry.Axial) bool
	IsWall(p geometry.Axial) bool
}

// Occupancy reports which points are currently occupied by another
// entity. Every occupied point must also be a terrain point; callers
// that violate this invariant will see FindPath behave as if the
// offending point were not on the map at all.
type Occupancy interface {
	Contains(p geometry.Axial) bool
}

// Outcome classifies how a search terminated.
type Outcome int

const (
	// Success: a path was found and Path holds its points, start
	// exclusive, end inclusive.
	Success Outcome = iota
	// Unreachable: the search space was exhausted before reaching end.
	Unreachable
	// NotFound: the iteration budget was exhausted before a
	// conclusive answer was reached either way.
	NotFound
)

// node is an arena-indexed A* search node. Parent is an index into the
// search's own node arena rather than a pointer or shared-ownership
// handle, so the whole search can run without allocation churn or
// reference cycles.
type node struct {
	pos    geometry.Axial
	parent int
	g      int32
	h      int32
}

func (n node) f() int32 { return n.g + n.h }

// less defines the open-set total order: ascending by f, then h, then
// q, then r. The tie-breaks on q and r exist purely so two runs over
// identical input produce a byte-identical path, never to reflect any
// domain meaning.
func less(a, b node) bool {
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	if a.h != b.h {
		return a.h < b.h
	}
	if a.pos.Q != b.pos.Q {
		return a.pos.Q < b.pos.Q
	}
	return a.pos.R < b.pos.R
}

// openSet is a container/heap min-heap over indices into the search's
// node arena, ordered by less. Popping the open set is O(log n) instead
// of re-sorting the whole slice every iteration.
type openSet struct {
	arena *[]node
	idx   []int
}

func (s openSet) Len() int            { return len(s.idx) }
func (s openSet) Less(i, j int) bool  { return less((*s.arena)[s.idx[i]], (*s.arena)[s.idx[j]]) }
func (s openSet) Swap(i, j int)       { s.idx[i], s.idx[j] = s.idx[j], s.idx[i] }
func (s *openSet) Push(x interface{}) { s.idx = append(s.idx, x.(int)) }
func (s *openSet) Pop() interface{} {
	last := len(s.idx) - 1
	v := s.idx[last]
	s.idx = s.idx[:last]
	return v
}

// FindPath searches from 'from' to 'to', stopping after maxIterations
// node expansions. It never allocates shared-ownership pointers for
// search state: the open and closed sets hold indices into a single
// growable node arena.
func FindPath(from, to geometry.Axial, terrain Terrain, occupancy Occupancy, maxIterations int) ([]geometry.Axial, Outcome) {
	if !terrain.Contains(from) || !terrain.Contains(to) {
		return nil, Unreachable
	}
	if from == to {
		return []geometry.Axial{to}, Success
	}

	arena := []node{{pos: from, parent: -1, g: 0, h: geometry.Distance(from, to)}}
	open := &openSet{arena: &arena}
	heap.Push(open, 0)
	closed := make(map[geometry.Axial]bool)

	iterations := 0
	for open.Len() > 0 {
		if iterations >= maxIterations {
			return nil, NotFound
		}
		iterations++

		currentIdx := heap.Pop(open).(int)
		current := arena[currentIdx]

		if current.pos == to {
			return reconstruct(arena, currentIdx), Success
		}
		if closed[current.pos] {
			continue
		}
		closed[current.pos] = true

		for _, n := range current.pos.Neighbours() {
			if closed[n] {
				continue
			}
			if !terrain.Contains(n) {
				continue
			}
			if n != to && terrain.IsWall(n) {
				continue
			}
			// occupancy.Contains(p) implies terrain.Contains(p); an
			// occupied cell blocks unless it is the destination.
			if n != to && occupancy != nil && occupancy.Contains(n) {
				continue
			}
			g := current.g + 1
			arena = append(arena, node{
				pos:    n,
				parent: currentIdx,
				g:      g,
				h:      geometry.Distance(n, to),
			})
			heap.Push(open, len(arena)-1)
		}
	}
	return nil, Unreachable
}

func reconstruct(arena []node, leaf int) []geometry.Axial {
	var reversed []geometry.Axial
	for i := leaf; i != -1; i = arena[i].parent {
		reversed = append(reversed, arena[i].pos)
	}
	path := make([]geometry.Axial, len(reversed))
	for i, p := range reversed {
		path[len(reversed)-1-i] = p
	}
	// the first entry is the starting point, which the caller already
	// occupies; the contract returns start-exclusive paths.
	if len(path) > 0 {
		path = path[1:]
	}
	return path
}
