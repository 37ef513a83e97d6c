package pathfinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/geometry"
)

type fakeTerrain struct {
	points map[geometry.Axial]bool
	walls  map[geometry.Axial]bool
}

func newFakeTerrain(radius int32) *fakeTerrain {
	t := &fakeTerrain{points: make(map[geometry.Axial]bool), walls: make(map[geometry.Axial]bool)}
	for _, p := range geometry.Hexagon(geometry.Axial{}, radius) {
		t.points[p] = true
	}
	return t
}

func (t *fakeTerrain) Contains(p geometry.Axial) bool { return t.points[p] }
func (t *fakeTerrain) IsWall(p geometry.Axial) bool   { return t.walls[p] }

type fakeOccupancy struct {
	occupied map[geometry.Axial]bool
}

func (o *fakeOccupancy) Contains(p geometry.Axial) bool { return o.occupied[p] }

func TestFindPathSimple(t *testing.T) {
	terrain := newFakeTerrain(10)
	from := geometry.Axial{Q: 0, R: 0}
	to := geometry.Axial{Q: 3, R: 0}

	path, outcome := FindPath(from, to, terrain, nil, 1000)
	require.Equal(t, Success, outcome)
	require.NotEmpty(t, path)
	assert.Equal(t, to, path[len(path)-1])
	assert.Len(t, path, int(geometry.Distance(from, to)))
}

func TestFindPathConsecutiveStepsAreAdjacent(t *testing.T) {
	terrain := newFakeTerrain(10)
	from := geometry.Axial{Q: -4, R: 2}
	to := geometry.Axial{Q: 5, R: -3}

	path, outcome := FindPath(from, to, terrain, nil, 10000)
	require.Equal(t, Success, outcome)
	prev := from
	for _, p := range path {
		assert.Equal(t, int32(1), geometry.Distance(prev, p), "consecutive path points must be neighbours")
		prev = p
	}
}

func TestFindPathRoutesAroundWallLine(t *testing.T) {
	// A wall segment at q=2, r in [0, 5]: the direct line from (0,2)
	// to (5,2) is blocked and the path must swing past the segment's
	// open end.
	terrain := newFakeTerrain(12)
	for r := int32(0); r <= 5; r++ {
		terrain.walls[geometry.Axial{Q: 2, R: r}] = true
	}
	from := geometry.Axial{Q: 0, R: 2}
	to := geometry.Axial{Q: 5, R: 2}

	path, outcome := FindPath(from, to, terrain, nil, 512)
	require.Equal(t, Success, outcome)
	require.Equal(t, to, path[len(path)-1])
	for _, p := range path {
		assert.False(t, terrain.walls[p], "path crosses a wall at %+v", p)
		if p.Q == 2 {
			assert.True(t, p.R < 0 || p.R > 5, "point %+v should have cleared the wall segment", p)
		}
	}
}

func TestFindPathUnreachableInsideWallRing(t *testing.T) {
	// Walls on all six neighbours of the start form a closed ring; the
	// search space is exhausted long before the iteration budget is.
	terrain := newFakeTerrain(10)
	from := geometry.Axial{Q: 0, R: 0}
	for _, n := range from.Neighbours() {
		terrain.walls[n] = true
	}
	to := geometry.Axial{Q: 5, R: 0}

	_, outcome := FindPath(from, to, terrain, nil, 512)
	assert.Equal(t, Unreachable, outcome)
}

func TestFindPathUnreachableOutsideTerrain(t *testing.T) {
	terrain := newFakeTerrain(2)
	from := geometry.Axial{Q: 0, R: 0}
	to := geometry.Axial{Q: 100, R: 100}
	_, outcome := FindPath(from, to, terrain, nil, 1000)
	assert.Equal(t, Unreachable, outcome)
}

func TestFindPathOccupiedBlocksButDestinationAllowed(t *testing.T) {
	terrain := newFakeTerrain(5)
	from := geometry.Axial{Q: 0, R: 0}
	to := geometry.Axial{Q: 2, R: 0}
	occ := &fakeOccupancy{occupied: map[geometry.Axial]bool{{Q: 2, R: 0}: true}}

	path, outcome := FindPath(from, to, terrain, occ, 1000)
	require.Equal(t, Success, outcome)
	assert.Equal(t, to, path[len(path)-1])
}

func TestFindPathNotFoundWithinBudget(t *testing.T) {
	terrain := newFakeTerrain(50)
	from := geometry.Axial{Q: -50, R: 0}
	to := geometry.Axial{Q: 50, R: 0}
	_, outcome := FindPath(from, to, terrain, nil, 1)
	assert.Equal(t, NotFound, outcome)
}

func TestFindPathSamePoint(t *testing.T) {
	terrain := newFakeTerrain(5)
	p := geometry.Axial{Q: 1, R: 1}
	path, outcome := FindPath(p, p, terrain, nil, 100)
	require.Equal(t, Success, outcome)
	assert.Equal(t, []geometry.Axial{p}, path)
}

func TestFindPathDeterministic(t *testing.T) {
	terrain := newFakeTerrain(8)
	terrain.walls[geometry.Axial{Q: 1, R: 0}] = true
	terrain.walls[geometry.Axial{Q: 1, R: 1}] = true
	from := geometry.Axial{Q: 0, R: 0}
	to := geometry.Axial{Q: 4, R: 0}

	first, outcome := FindPath(from, to, terrain, nil, 1000)
	require.Equal(t, Success, outcome)
	for i := 0; i < 5; i++ {
		again, outcome := FindPath(from, to, terrain, nil, 1000)
		require.Equal(t, Success, outcome)
		assert.Equal(t, first, again, "identical inputs must yield an identical path")
	}
}
