package morton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/geometry"
)

func TestKeyRoundTrip(t *testing.T) {
	points := []geometry.Axial{
		{Q: 0, R: 0}, {Q: 5, R: -3}, {Q: -100, R: 42}, {Q: 12345, R: -6789},
	}
	for _, p := range points {
		k := NewKey(p)
		assert.Equal(t, p, k.AsPoint())
	}
}

func TestTableInsertGetDelete(t *testing.T) {
	tbl := New[string]()
	tbl.Insert(geometry.Axial{Q: 1, R: 1}, "a")
	tbl.Insert(geometry.Axial{Q: 2, R: 2}, "b")
	tbl.Insert(geometry.Axial{Q: -1, R: 0}, "c")

	v, ok := tbl.Get(geometry.Axial{Q: 2, R: 2})
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 3, tbl.Len())

	tbl.Delete(geometry.Axial{Q: 2, R: 2})
	assert.False(t, tbl.Contains(geometry.Axial{Q: 2, R: 2}))
	assert.Equal(t, 2, tbl.Len())
}

func TestTableInsertRejectsExisting(t *testing.T) {
	tbl := New[int]()
	p := geometry.Axial{Q: 3, R: 3}
	require.True(t, tbl.Insert(p, 1), "first Insert should succeed")
	assert.False(t, tbl.Insert(p, 2), "second Insert at an occupied point should return false")
	assert.Equal(t, 1, tbl.Len())

	v, _ := tbl.Get(p)
	assert.Equal(t, 1, v, "original value kept")
}

func TestFromIteratorSortsKeys(t *testing.T) {
	items := []struct {
		Point geometry.Axial
		Value int
	}{
		{Point: geometry.Axial{Q: 5, R: 5}, Value: 1},
		{Point: geometry.Axial{Q: -5, R: -5}, Value: 2},
		{Point: geometry.Axial{Q: 0, R: 0}, Value: 3},
	}
	tbl := FromIterator(items)
	require.Equal(t, 3, tbl.Len())
	for i := 1; i < len(tbl.keys); i++ {
		assert.LessOrEqual(t, tbl.keys[i-1], tbl.keys[i], "keys not sorted at index %d", i)
	}
	v, ok := tbl.Get(geometry.Axial{Q: 0, R: 0})
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestFindByRange(t *testing.T) {
	tbl := New[int]()
	center := geometry.Axial{Q: 0, R: 0}
	for _, p := range geometry.Hexagon(center, 5) {
		tbl.Insert(p, 1)
	}
	tbl.Insert(geometry.Axial{Q: 100, R: 100}, 99)

	got := tbl.FindByRange(center, 2)
	want := len(geometry.Hexagon(center, 2))
	assert.Equal(t, want, len(got))
	for _, r := range got {
		assert.LessOrEqual(t, geometry.Distance(center, r.Point), int32(2))
	}
}

func TestInsertRejectsOutOfRange(t *testing.T) {
	tbl := New[int]()
	assert.False(t, tbl.Insert(geometry.Axial{Q: 40000, R: 0}, 1), "Q out of 16-bit range should be rejected")
	assert.False(t, tbl.Insert(geometry.Axial{Q: 0, R: -40000}, 1), "R out of 16-bit range should be rejected")
	assert.Equal(t, 0, tbl.Len())
	assert.False(t, tbl.Contains(geometry.Axial{Q: 40000, R: 0}))

	require.True(t, tbl.Insert(geometry.Axial{Q: 32767, R: -32768}, 2), "boundary values should be accepted")
	assert.Equal(t, 1, tbl.Len())
}

func TestExtendSkipsOccupied(t *testing.T) {
	tbl := New[int]()
	tbl.Insert(geometry.Axial{Q: 0, R: 0}, 1)
	tbl.Extend([]struct {
		Point geometry.Axial
		Value int
	}{
		{Point: geometry.Axial{Q: 0, R: 0}, Value: 99},
		{Point: geometry.Axial{Q: 1, R: 0}, Value: 2},
	})
	assert.Equal(t, 2, tbl.Len())
	v, _ := tbl.Get(geometry.Axial{Q: 0, R: 0})
	assert.Equal(t, 1, v, "occupied point keeps its original value")
}

func TestClearEmptiesTable(t *testing.T) {
	tbl := New[int]()
	tbl.Insert(geometry.Axial{Q: 0, R: 0}, 1)
	tbl.Insert(geometry.Axial{Q: 1, R: 1}, 2)
	tbl.Clear()
	assert.Zero(t, tbl.Len())
	assert.False(t, tbl.Contains(geometry.Axial{Q: 0, R: 0}))
}

func TestIterStopsEarly(t *testing.T) {
	tbl := New[int]()
	for i := int32(0); i < 5; i++ {
		tbl.Insert(geometry.Axial{Q: i, R: 0}, int(i))
	}
	seen := 0
	tbl.Iter(func(p geometry.Axial, v int) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}
