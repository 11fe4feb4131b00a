package inmemory

import (
	"testing"

	"github.com/watchroom/server/internal/repository/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetIntentUpdatesState(t *testing.T) {
	repo := NewRepo()

	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "a", ToId: "b", State: mesh.StateOffered})
	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "b", ToId: "a", State: mesh.StateAnswered})

	intent, err := repo.GetIntent("room-1", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, mesh.StateAnswered, intent.State, "the pair is one link regardless of direction")
}

func TestGetIntentNotFound(t *testing.T) {
	repo := NewRepo()

	_, err := repo.GetIntent("room-1", "a", "b")
	assert.ErrorIs(t, err, mesh.ErrIntentNotFound)
}

func TestRemoveIntent(t *testing.T) {
	repo := NewRepo()

	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "a", ToId: "b", State: mesh.StateEstablished})
	repo.RemoveIntent("room-1", "b", "a")

	_, err := repo.GetIntent("room-1", "a", "b")
	assert.ErrorIs(t, err, mesh.ErrIntentNotFound)
}

func TestRemoveByMember(t *testing.T) {
	repo := NewRepo()

	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "a", ToId: "b", State: mesh.StateEstablished})
	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "c", ToId: "a", State: mesh.StateOffered})
	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "b", ToId: "c", State: mesh.StateOffered})

	removed := repo.RemoveByMember("room-1", "a")
	require.Len(t, removed, 2)
	for _, intent := range removed {
		assert.Equal(t, mesh.StateClosed, intent.State)
	}

	_, err := repo.GetIntent("room-1", "b", "c")
	assert.NoError(t, err, "links not involving the member survive")
}

func TestRemoveByRoom(t *testing.T) {
	repo := NewRepo()

	repo.SetIntent(&mesh.Intent{RoomId: "room-1", FromId: "a", ToId: "b", State: mesh.StateEstablished})
	repo.SetIntent(&mesh.Intent{RoomId: "room-2", FromId: "a", ToId: "b", State: mesh.StateEstablished})

	removed := repo.RemoveByRoom("room-1")
	assert.Len(t, removed, 1)

	_, err := repo.GetIntent("room-1", "a", "b")
	assert.ErrorIs(t, err, mesh.ErrIntentNotFound)

	_, err = repo.GetIntent("room-2", "a", "b")
	assert.NoError(t, err)
}
