package redis

import (
	"context"
	"fmt"

	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	pipe := r.rc.TxPipeline()

	playerKey := r.getPlayerKey(params.RoomId)
	pipe.HSet(ctx, playerKey, room.Player{
		MediaRef:  params.MediaRef,
		IsPlaying: params.IsPlaying,
		Position:  params.Position,
		UpdatedAt: params.UpdatedAt,
	})
	pipe.Expire(ctx, playerKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

func (r repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	playerKey := r.getPlayerKey(roomId)
	cmd := r.rc.Exists(ctx, playerKey)
	if err := cmd.Err(); err != nil {
		return room.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	if cmd.Val() == 0 {
		return room.Player{}, room.ErrPlayerNotFound
	}

	var player room.Player
	if err := r.rc.HGetAll(ctx, playerKey).Scan(&player); err != nil {
		return room.Player{}, fmt.Errorf("failed to scan player: %w", err)
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return player, nil
}

func (r repo) UpdatePlayerState(ctx context.Context, params *room.UpdatePlayerStateParams) error {
	playerKey := r.getPlayerKey(params.RoomId)
	cmd := r.rc.Exists(ctx, playerKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrPlayerNotFound
	}

	if err := r.rc.HSet(ctx, playerKey,
		"is_playing", params.IsPlaying,
		"position", params.Position,
		"updated_at", params.UpdatedAt,
	).Err(); err != nil {
		return fmt.Errorf("failed to update player state: %w", err)
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return nil
}

func (r repo) UpdatePlayerMedia(ctx context.Context, params *room.UpdatePlayerMediaParams) error {
	playerKey := r.getPlayerKey(params.RoomId)
	cmd := r.rc.Exists(ctx, playerKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrPlayerNotFound
	}

	// switching media always restarts playback from zero, paused
	if err := r.rc.HSet(ctx, playerKey,
		"media_ref", params.MediaRef,
		"is_playing", false,
		"position", float64(0),
		"updated_at", params.UpdatedAt,
	).Err(); err != nil {
		return fmt.Errorf("failed to update player media: %w", err)
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return nil
}
