package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/repository/room"
)

func newTestRepo(t *testing.T) *repo {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, &Config{
		ExpireDuration:  time.Hour,
		SessionDuration: time.Minute,
		ChatLimit:       200,
	})
}

func TestConsumeSessionIsAtomic(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	err := r.SetCreateRoomSession(ctx, &room.SetCreateRoomSessionParams{
		Token:           "token-1",
		UserId:          "user-1",
		Username:        "alice",
		InitialMediaRef: "media-1",
	})
	require.NoError(t, err)

	const racers = 8
	results := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = r.GetCreateRoomSession(ctx, "token-1")
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range results {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, room.ErrSessionNotFound)
		}
	}
	assert.Equal(t, 1, admitted, "a connect token admits exactly one upgrade")
}

func TestConsumeSessionReturnsFields(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	err := r.SetJoinRoomSession(ctx, &room.SetJoinRoomSessionParams{
		Token:     "token-2",
		UserId:    "user-2",
		Username:  "bob",
		AvatarUrl: "https://example.com/bob.png",
		RoomId:    "room-abc",
	})
	require.NoError(t, err)

	session, err := r.GetJoinRoomSession(ctx, "token-2")
	require.NoError(t, err)
	assert.Equal(t, room.JoinRoomSession{
		UserId:    "user-2",
		Username:  "bob",
		AvatarUrl: "https://example.com/bob.png",
		RoomId:    "room-abc",
	}, session)

	_, err = r.GetJoinRoomSession(ctx, "token-2")
	assert.ErrorIs(t, err, room.ErrSessionNotFound)
}
