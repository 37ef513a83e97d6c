package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
)

func TestDecayCountsDownBeforeDamaging(t *testing.T) {
	hp := storage.NewTable[storage.EntityId, Hp]()
	decay := storage.NewTable[storage.EntityId, Decay]()
	hp.Insert(1, Hp{Value: 10})
	decay.Insert(1, Decay{T: 2, HpPerTick: 3})

	DecaySystem(hp, decay, storage.NewDeleteEntityView(hp, decay))

	h, _ := hp.Get(1)
	assert.Equal(t, int32(10), h.Value, "hp untouched while the timer counts down")
	d, _ := decay.Get(1)
	assert.Equal(t, int32(1), d.T)
}

func TestDecayDamagesAndResetsAtZero(t *testing.T) {
	hp := storage.NewTable[storage.EntityId, Hp]()
	decay := storage.NewTable[storage.EntityId, Decay]()
	hp.Insert(1, Hp{Value: 10})
	decay.Insert(1, Decay{T: 0, ResetTo: 4, HpPerTick: 3})

	DecaySystem(hp, decay, storage.NewDeleteEntityView(hp, decay))

	h, _ := hp.Get(1)
	assert.Equal(t, int32(7), h.Value)
	d, _ := decay.Get(1)
	assert.Equal(t, int32(4), d.T, "the timer restarts after dealing damage")
}

func TestDecayDeletesAtZeroHp(t *testing.T) {
	hp := storage.NewTable[storage.EntityId, Hp]()
	decay := storage.NewTable[storage.EntityId, Decay]()
	other := storage.NewTable[storage.EntityId, int]()
	hp.Insert(1, Hp{Value: 3})
	decay.Insert(1, Decay{T: 0, HpPerTick: 5})
	other.Insert(1, 42)

	DecaySystem(hp, decay, storage.NewDeleteEntityView(hp, decay, other))

	assert.False(t, hp.Contains(1))
	assert.False(t, decay.Contains(1))
	assert.False(t, other.Contains(1), "the delete cascades across every registered table")
}

func TestEnergyRegeneratesAndSaturates(t *testing.T) {
	energy := storage.NewTable[storage.EntityId, Energy]()
	energy.Insert(1, Energy{Current: 98, Max: 100, RegenAmount: 5})
	energy.Insert(2, Energy{Current: 50, Max: 100, RegenAmount: 5})

	EnergySystem(energy)

	e1, _ := energy.Get(1)
	assert.Equal(t, int32(100), e1.Current, "regen saturates at the cap")
	e2, _ := energy.Get(2)
	assert.Equal(t, int32(55), e2.Current)
}

func TestSpawnSystemReportsCompletions(t *testing.T) {
	progress := storage.NewTable[storage.EntityId, SpawnProgress]()
	site := geometry.Axial{Q: 1, R: 2}
	room := geometry.Axial{Q: 0, R: 1}
	progress.Insert(1, SpawnProgress{Progress: 8, Required: 10, Room: room, Position: site})
	progress.Insert(2, SpawnProgress{Progress: 9, Required: 10, Room: room, Position: site})

	ready := SpawnSystem(progress)

	require.Len(t, ready, 1)
	assert.Equal(t, storage.EntityId(2), ready[0].Entity)
	assert.Equal(t, room, ready[0].Room)
	assert.Equal(t, site, ready[0].Position)

	p1, _ := progress.Get(1)
	assert.Equal(t, int32(9), p1.Progress)
	p2, _ := progress.Get(2)
	assert.Equal(t, int32(0), p2.Progress, "a completed cycle starts over")
}

func TestRebuildPositionIndexGroupsByRoom(t *testing.T) {
	entries := []PositionEntry{
		{Entity: 1, Room: geometry.Axial{Q: 0, R: 0}, Point: geometry.Axial{Q: 1, R: 1}},
		{Entity: 2, Room: geometry.Axial{Q: 0, R: 0}, Point: geometry.Axial{Q: 2, R: 2}},
		{Entity: 3, Room: geometry.Axial{Q: 5, R: 0}, Point: geometry.Axial{Q: 1, R: 1}},
	}

	byRoom := RebuildPositionIndex(entries)

	require.Len(t, byRoom, 2)
	home := byRoom[geometry.Axial{Q: 0, R: 0}]
	require.NotNil(t, home)
	assert.Equal(t, 2, home.Len())
	occupant, ok := home.Get(geometry.Axial{Q: 1, R: 1})
	require.True(t, ok)
	assert.Equal(t, storage.EntityId(1), occupant)

	away := byRoom[geometry.Axial{Q: 5, R: 0}]
	require.NotNil(t, away)
	occupant, ok = away.Get(geometry.Axial{Q: 1, R: 1})
	require.True(t, ok)
	assert.Equal(t, storage.EntityId(3), occupant)
}
