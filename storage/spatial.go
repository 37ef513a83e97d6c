package storage

import (
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/morton"
)

// SpatialTable indexes a component by axial position. It wraps a
// morton.Table so point-keyed components (terrain, occupancy) get the
// same sorted, deterministic iteration as the id-keyed Table type.
type SpatialTable[V any] struct {
	inner *morton.Table[V]
}

// NewSpatialTable returns an empty spatial component table.
func NewSpatialTable[V any]() *SpatialTable[V] {
	return &SpatialTable[V]{inner: morton.New[V]()}
}

func (s *SpatialTable[V]) Get(p geometry.Axial) (V, bool)    { return s.inner.Get(p) }
func (s *SpatialTable[V]) Contains(p geometry.Axial) bool    { return s.inner.Contains(p) }
func (s *SpatialTable[V]) Intersects(p geometry.Axial) bool  { return s.inner.Intersects(p) }
func (s *SpatialTable[V]) Insert(p geometry.Axial, v V) bool { return s.inner.Insert(p, v) }
func (s *SpatialTable[V]) Delete(p geometry.Axial)           { s.inner.Delete(p) }
func (s *SpatialTable[V]) Clear()                            { s.inner.Clear() }
func (s *SpatialTable[V]) Len() int                          { return s.inner.Len() }
func (s *SpatialTable[V]) Points() []geometry.Axial          { return s.inner.Points() }

// Iter calls fn for every (point, value) pair in ascending Morton-key
// order, stopping early if fn returns false.
func (s *SpatialTable[V]) Iter(fn func(p geometry.Axial, v V) bool) { s.inner.Iter(fn) }

// FindByRange returns every (point, value) within radius hexes of
// center.
func (s *SpatialTable[V]) FindByRange(center geometry.Axial, radius int32) []struct {
	Point geometry.Axial
	Value V
} {
	return s.inner.FindByRange(center, radius)
}

// Entry pairs a point with the value stored at it, used by Entries and
// SpatialTableFromIterator to move whole tables around in bulk.
type Entry[V any] struct {
	Point geometry.Axial
	Value V
}

// Entries returns every (point, value) pair currently stored, in
// Morton key order. Callers must not mutate the returned slice.
func (s *SpatialTable[V]) Entries() []Entry[V] {
	points := s.inner.Points()
	out := make([]Entry[V], len(points))
	for i, p := range points {
		v, _ := s.inner.Get(p)
		out[i] = Entry[V]{Point: p, Value: v}
	}
	return out
}

// SpatialTableFromIterator bulk-builds a spatial table from entries,
// sorting once instead of inserting one at a time. Used by the
// position-index rebuild system, which replaces the whole
// entity-at-point table every tick rather than patching it
// incrementally.
func SpatialTableFromIterator[V any](entries []Entry[V]) *SpatialTable[V] {
	items := make([]struct {
		Point geometry.Axial
		Value V
	}, len(entries))
	for i, e := range entries {
		items[i] = struct {
			Point geometry.Axial
			Value V
		}{Point: e.Point, Value: e.Value}
	}
	return &SpatialTable[V]{inner: morton.FromIterator(items)}
}
