package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/presence"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getPresenceKey(userId string) string {
	return "presence:" + userId
}

func (r repo) SetRecord(ctx context.Context, params *presence.SetRecordParams) error {
	pipe := r.rc.TxPipeline()

	presenceKey := r.getPresenceKey(params.UserId)
	pipe.HSet(ctx, presenceKey, presence.Record{
		UserId:    params.UserId,
		Status:    params.Status,
		RoomId:    params.RoomId,
		UpdatedAt: params.UpdatedAt,
	})
	pipe.Expire(ctx, presenceKey, r.expireDuration)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return fmt.Errorf("failed to set presence record: %w", err)
			}
		}

		return fmt.Errorf("failed to set presence record: %w", err)
	}

	return nil
}

func (r repo) GetRecord(ctx context.Context, userId string) (presence.Record, error) {
	presenceKey := r.getPresenceKey(userId)
	cmd := r.rc.Exists(ctx, presenceKey)
	if err := cmd.Err(); err != nil {
		return presence.Record{}, fmt.Errorf("failed to get presence record: %w", err)
	}
	if cmd.Val() == 0 {
		return presence.Record{}, presence.ErrPresenceNotFound
	}

	var record presence.Record
	if err := r.rc.HGetAll(ctx, presenceKey).Scan(&record); err != nil {
		return presence.Record{}, fmt.Errorf("failed to scan presence record: %w", err)
	}

	return record, nil
}

// GetRecords returns records for the given user ids. Unknown users come
// back as offline rather than being omitted, so callers can render a
// full friends list in one pass.
func (r repo) GetRecords(ctx context.Context, userIds []string) ([]presence.Record, error) {
	pipe := r.rc.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, 0, len(userIds))
	for _, userId := range userIds {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getPresenceKey(userId)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get presence records: %w", err)
	}

	records := make([]presence.Record, 0, len(userIds))
	for i, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			records = append(records, presence.Record{
				UserId: userIds[i],
				Status: presence.StatusOffline,
			})
			continue
		}

		var record presence.Record
		if err := cmd.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan presence record: %w", err)
		}

		records = append(records, record)
	}

	return records, nil
}
