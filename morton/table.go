// Package morton implements a Morton-order (Z-curve) spatial index over
// axial hex coordinates, the storage backend for every point-keyed
// component table in the simulation.
package morton

import (
	"sort"

	"github.com/caolo/simcore/geometry"
)

// Key is a Morton-interleaved spatial key. Two points that are close in
// (x, y) space tend to be close in Key space, which is what makes range
// queries cheaper than a full table scan.
type Key uint32

// interleave spreads the bits of a uint16 so that consecutive bits of
// the original value are two positions apart, making room to interleave
// a second value in between.
func interleave(v uint16) uint32 {
	x := uint32(v)
	x = (x | (x << 8)) & 0x00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F
	x = (x | (x << 2)) & 0x33333333
	x = (x | (x << 1)) & 0x55555555
	return x
}

func deinterleave(x uint32) uint16 {
	x &= 0x55555555
	x = (x | (x >> 1)) & 0x33333333
	x = (x | (x >> 2)) & 0x0F0F0F0F
	x = (x | (x >> 4)) & 0x00FF00FF
	x = (x | (x >> 8)) & 0x0000FFFF
	return uint16(x)
}

// axialToUnsigned maps a signed axial coordinate component into the
// unsigned uint16 space the interleaving bit tricks operate on, by
// offsetting with the sign bit. This keeps ordering monotonic across
// zero.
func axialToUnsigned(v int32) uint16 {
	return uint16(uint32(v) ^ 0x8000)
}

func unsignedToAxial(v uint16) int32 {
	return int32(int16(v ^ 0x8000))
}

// inRange16 reports whether v fits the signed 16-bit range the Morton
// key's bit-interleaving operates on. A component outside this range
// would silently truncate in axialToUnsigned and could then alias onto
// an unrelated in-range point's key.
func inRange16(v int32) bool {
	return v >= -32768 && v <= 32767
}

// InRange reports whether p's components both fit the 16-bit range
// Table keys can address.
func InRange(p geometry.Axial) bool {
	return inRange16(p.Q) && inRange16(p.R)
}

// NewKey builds the Morton key for an axial point.
func NewKey(p geometry.Axial) Key {
	x := interleave(axialToUnsigned(p.Q))
	y := interleave(axialToUnsigned(p.R))
	return Key(x | (y << 1))
}

// AsPoint decodes a Morton key back into its axial point. It is the
// exact inverse of NewKey.
func (k Key) AsPoint() geometry.Axial {
	x := deinterleave(uint32(k))
	y := deinterleave(uint32(k) >> 1)
	return geometry.Axial{Q: unsignedToAxial(x), R: unsignedToAxial(y)}
}

// Table is a sorted-parallel-slice spatial map keyed by axial point via
// its Morton key. Keys are kept sorted so lookups are a binary search
// and range queries can skip directly into the relevant key interval
// instead of scanning every entry.
type Table[V any] struct {
	keys   []Key
	points []geometry.Axial
	values []V
}

// New returns an empty spatial table.
func New[V any]() *Table[V] {
	return &Table[V]{}
}

// FromIterator bulk-builds a table from a set of (point, value) pairs.
// It collects everything first and sorts once, which is far cheaper
// than inserting one at a time when the caller already has the full set
// (e.g. rebuilding the position index every tick).
func FromIterator[V any](items []struct {
	Point geometry.Axial
	Value V
}) *Table[V] {
	t := &Table[V]{
		keys:   make([]Key, len(items)),
		points: make([]geometry.Axial, len(items)),
		values: make([]V, len(items)),
	}
	type entry struct {
		key   Key
		point geometry.Axial
		value V
	}
	entries := make([]entry, len(items))
	for i, it := range items {
		entries[i] = entry{key: NewKey(it.Point), point: it.Point, value: it.Value}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	for i, e := range entries {
		t.keys[i] = e.key
		t.points[i] = e.point
		t.values[i] = e.value
	}
	return t
}

// Len returns the number of entries in the table.
func (t *Table[V]) Len() int { return len(t.keys) }

func (t *Table[V]) search(k Key) int {
	return sort.Search(len(t.keys), func(i int) bool { return t.keys[i] >= k })
}

// indexOf returns the slice index of the exact point, or -1 if absent.
// Morton keys are not unique per point in general bit-interleaving
// schemes at the boundary, so a key match is disambiguated with a
// linear scan over the (rare) run of equal keys.
func (t *Table[V]) indexOf(p geometry.Axial) int {
	k := NewKey(p)
	i := t.search(k)
	for i < len(t.keys) && t.keys[i] == k {
		if t.points[i] == p {
			return i
		}
		i++
	}
	return -1
}

// Get returns the value stored at p, if any.
func (t *Table[V]) Get(p geometry.Axial) (V, bool) {
	var zero V
	i := t.indexOf(p)
	if i < 0 {
		return zero, false
	}
	return t.values[i], true
}

// Contains reports whether p has an entry.
func (t *Table[V]) Contains(p geometry.Axial) bool {
	return t.indexOf(p) >= 0
}

// Intersects is an alias for Contains, kept distinct in the API for a
// future key type that isn't a single point (e.g. an area query).
func (t *Table[V]) Intersects(p geometry.Axial) bool {
	return t.Contains(p)
}

// Insert adds v at p, keeping the table sorted by key. It returns false
// and leaves the existing entry untouched if p is already present;
// there is no upsert path, matching the spatial table's "first writer
// wins" contract (callers that want to replace an occupant delete
// first). It also returns false, inserting nothing, if p falls outside
// the 16-bit range the Morton key can address without truncation.
func (t *Table[V]) Insert(p geometry.Axial, v V) bool {
	if !InRange(p) {
		return false
	}
	if i := t.indexOf(p); i >= 0 {
		return false
	}
	k := NewKey(p)
	i := t.search(k)
	t.keys = append(t.keys, 0)
	copy(t.keys[i+1:], t.keys[i:])
	t.keys[i] = k
	t.points = append(t.points, geometry.Axial{})
	copy(t.points[i+1:], t.points[i:])
	t.points[i] = p
	t.values = append(t.values, v)
	copy(t.values[i+1:], t.values[i:])
	t.values[i] = v
	return true
}

// Delete removes the entry at p, if present.
func (t *Table[V]) Delete(p geometry.Axial) {
	i := t.indexOf(p)
	if i < 0 {
		return
	}
	t.keys = append(t.keys[:i], t.keys[i+1:]...)
	t.points = append(t.points[:i], t.points[i+1:]...)
	t.values = append(t.values[:i], t.values[i+1:]...)
}

// Points returns the sorted-by-key points currently stored. Callers
// must not mutate the returned slice.
func (t *Table[V]) Points() []geometry.Axial { return t.points }

// Clear empties the table, keeping the backing arrays' capacity so a
// caller that rebuilds the same table every tick (the position index)
// doesn't pay a fresh allocation each time.
func (t *Table[V]) Clear() {
	t.keys = t.keys[:0]
	t.points = t.points[:0]
	t.values = t.values[:0]
}

// Extend inserts every (point, value) pair in items, skipping any point
// already present. It is a thin loop over Insert, not a bulk re-sort;
// callers with a full replacement set should prefer FromIterator.
func (t *Table[V]) Extend(items []struct {
	Point geometry.Axial
	Value V
}) {
	for _, it := range items {
		t.Insert(it.Point, it.Value)
	}
}

// Iter calls fn for every (point, value) pair in ascending Morton-key
// order, stopping early if fn returns false.
func (t *Table[V]) Iter(fn func(p geometry.Axial, v V) bool) {
	for i, p := range t.points {
		if !fn(p, t.values[i]) {
			return
		}
	}
}

// FindByRange returns every (point, value) pair within radius hexes of
// center. For small radii (the common case: unit vision/interaction
// range) it binary-searches each candidate point's key instead of
// scanning the full table; for large radii it switches to one linear
// scan, since enumerating a huge hex neighbourhood point by point
// would cost more than visiting every stored entry once.
func (t *Table[V]) FindByRange(center geometry.Axial, radius int32) []struct {
	Point geometry.Axial
	Value V
} {
	var out []struct {
		Point geometry.Axial
		Value V
	}
	if radius >= 0 && radius <= 32 {
		for dq := -radius; dq <= radius; dq++ {
			rMin := -radius
			if -dq-radius > rMin {
				rMin = -dq - radius
			}
			rMax := radius
			if -dq+radius < rMax {
				rMax = -dq + radius
			}
			for dr := rMin; dr <= rMax; dr++ {
				p := geometry.Axial{Q: center.Q + dq, R: center.R + dr}
				if i := t.indexOf(p); i >= 0 {
					out = append(out, struct {
						Point geometry.Axial
						Value V
					}{Point: p, Value: t.values[i]})
				}
			}
		}
		return out
	}
	for i, p := range t.points {
		if geometry.Distance(center, p) <= radius {
			out = append(out, struct {
				Point geometry.Axial
				Value V
			}{Point: p, Value: t.values[i]})
		}
	}
	return out
}
