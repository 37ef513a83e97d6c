package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/storage"
	"github.com/caolo/simcore/systems"
)

func TestSnapshotGroupsByRoom(t *testing.T) {
	w := New()
	room := geometry.Axial{Q: 1, R: -1}

	owner := storage.NewUserId(uuid.New())
	w.Users.Insert(owner, UserProfile{Subject: owner.String(), DisplayName: "scout"})

	bot := w.AllocateEntity()
	w.BotMarker.Insert(bot, struct{}{})
	w.OwnedBy.Insert(bot, owner)
	w.Position.Insert(bot, WorldPosition{Room: room, Pos: geometry.Axial{Q: 2, R: 0}})
	w.Hp.Insert(bot, systems.Hp{Value: 42})

	w.Room(room).Terrain.Insert(geometry.Axial{Q: 0, R: 0}, Terrain{Kind: Wall})

	doc := Snapshot(w)

	key := roomKey(room)
	bots := doc.Bots[key]
	require.Len(t, bots, 1)
	assert.Equal(t, int32(42), bots[0].Hp)
	assert.Equal(t, owner.String(), bots[0].Owner)

	users := doc.Users[key]
	require.Len(t, users, 1)
	assert.Equal(t, "scout", users[0].DisplayName)

	terrain, ok := doc.Terrain[key]
	require.True(t, ok)
	assert.Len(t, terrain.Walls, 1)
	assert.NotEmpty(t, terrain.RoomLayout)
}

func TestSnapshotOwnerlessResourceAddsNoUser(t *testing.T) {
	w := New()
	room := geometry.Axial{}

	resource := w.AllocateEntity()
	w.ResourceMarker.Insert(resource, struct{}{})
	w.Position.Insert(resource, WorldPosition{Room: room, Pos: geometry.Axial{}})
	w.Resource.Insert(resource, Resource{Amount: 500})

	doc := Snapshot(w)
	key := roomKey(room)
	resources := doc.Resources[key]
	require.Len(t, resources, 1)
	assert.Equal(t, int64(500), resources[0].Amount)
	assert.Empty(t, doc.Users[key], "resource entities should not add spurious owners")
}

func TestSnapshotRoomOrderIsDeterministic(t *testing.T) {
	w := New()
	w.Room(geometry.Axial{Q: 3, R: 0})
	w.Room(geometry.Axial{Q: -1, R: 2})
	w.Room(geometry.Axial{Q: 0, R: 0})

	first := Snapshot(w)
	assert.Equal(t, []string{"-1;2", "0;0", "3;0"}, first.Rooms)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Rooms, Snapshot(w).Rooms)
	}
}
