package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getCreateRoomSessionKey(token string) string {
	return "create-room-session:" + token
}

func (r repo) getJoinRoomSessionKey(token string) string {
	return "join-room-session:" + token
}

func (r repo) SetCreateRoomSession(ctx context.Context, params *room.SetCreateRoomSessionParams) error {
	pipe := r.rc.TxPipeline()

	sessionKey := r.getCreateRoomSessionKey(params.Token)
	pipe.HSet(ctx, sessionKey, room.CreateRoomSession{
		UserId:          params.UserId,
		Username:        params.Username,
		AvatarUrl:       params.AvatarUrl,
		InitialMediaRef: params.InitialMediaRef,
	})
	pipe.Expire(ctx, sessionKey, r.sessionDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set create room session: %w", err)
	}

	return nil
}

// GetCreateRoomSession consumes the session: a connect token is single
// use, and the read-and-delete is atomic so two racing upgrades cannot
// both be admitted on the same token.
func (r repo) GetCreateRoomSession(ctx context.Context, token string) (room.CreateRoomSession, error) {
	fields, err := r.consumeSession(ctx, r.getCreateRoomSessionKey(token))
	if err != nil {
		return room.CreateRoomSession{}, err
	}

	return room.CreateRoomSession{
		UserId:          fields["user_id"],
		Username:        fields["username"],
		AvatarUrl:       fields["avatar_url"],
		InitialMediaRef: fields["initial_media_ref"],
	}, nil
}

func (r repo) SetJoinRoomSession(ctx context.Context, params *room.SetJoinRoomSessionParams) error {
	pipe := r.rc.TxPipeline()

	sessionKey := r.getJoinRoomSessionKey(params.Token)
	pipe.HSet(ctx, sessionKey, room.JoinRoomSession{
		UserId:    params.UserId,
		Username:  params.Username,
		AvatarUrl: params.AvatarUrl,
		RoomId:    params.RoomId,
	})
	pipe.Expire(ctx, sessionKey, r.sessionDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set join room session: %w", err)
	}

	return nil
}

func (r repo) GetJoinRoomSession(ctx context.Context, token string) (room.JoinRoomSession, error) {
	fields, err := r.consumeSession(ctx, r.getJoinRoomSessionKey(token))
	if err != nil {
		return room.JoinRoomSession{}, err
	}

	return room.JoinRoomSession{
		UserId:    fields["user_id"],
		Username:  fields["username"],
		AvatarUrl: fields["avatar_url"],
		RoomId:    fields["room_id"],
	}, nil
}

// consumeSession fetches and deletes the session hash in a single script
// call and returns its fields.
func (r repo) consumeSession(ctx context.Context, key string) (map[string]string, error) {
	res, err := r.rc.EvalSha(ctx, r.consumeSessionScript, []string{key}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, room.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to consume session: %w", err)
	}

	data, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("failed to consume session: unexpected reply %T", res)
	}

	fields := make(map[string]string, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		fields[data[i].(string)] = data[i+1].(string)
	}

	return fields, nil
}
