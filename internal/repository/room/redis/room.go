package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getRoomPrefix(roomId string) string {
	return "room:" + roomId + "*"
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomId)
	pipe.HSet(ctx, roomKey, room.Room{
		HostId:    params.HostId,
		CreatedAt: params.CreatedAt,
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) IsRoomExists(ctx context.Context, roomId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getRoomKey(roomId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if room exists: %w", err)
	}

	return res > 0, nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	roomKey := r.getRoomKey(roomId)
	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}
	if cmd.Val() == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	var rm room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to scan room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}

// RefreshRoomExpiration pushes back the reap deadline for every key of
// the room.
func (r repo) RefreshRoomExpiration(ctx context.Context, roomId string) error {
	at := time.Now().Add(r.expireDuration)
	if err := r.rc.EvalSha(ctx, r.expireKeysWithPrefixScript, []string{}, r.getRoomPrefix(roomId), at.Unix()).Err(); err != nil {
		return fmt.Errorf("failed to refresh room expiration: %w", err)
	}

	return nil
}

// ExpireRoom schedules every key of the room for expiration at the
// given time. Used when the last participant leaves.
func (r repo) ExpireRoom(ctx context.Context, roomId string, at time.Time) error {
	if err := r.rc.EvalSha(ctx, r.expireKeysWithPrefixScript, []string{}, r.getRoomPrefix(roomId), at.Unix()).Err(); err != nil {
		return fmt.Errorf("failed to expire room: %w", err)
	}

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	if err := r.rc.EvalSha(ctx, r.deleteKeysWithPrefixScript, []string{}, r.getRoomPrefix(roomId)).Err(); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}
