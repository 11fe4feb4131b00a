package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getChatKey(roomId string) string {
	return "room:" + roomId + ":chat"
}

func (r repo) getChatSeqKey(roomId string) string {
	return "room:" + roomId + ":chat:seq"
}

// IncrementChatSeq hands out the next per-room message sequence number.
func (r repo) IncrementChatSeq(ctx context.Context, roomId string) (int, error) {
	chatSeqKey := r.getChatSeqKey(roomId)
	seq, err := r.rc.Incr(ctx, chatSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment chat seq: %w", err)
	}

	r.rc.Expire(ctx, chatSeqKey, r.expireDuration)

	return int(seq), nil
}

func (r repo) AddChatMessage(ctx context.Context, params *room.AddChatMessageParams) error {
	raw, err := json.Marshal(params.Message)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	pipe := r.rc.TxPipeline()

	chatKey := r.getChatKey(params.RoomId)
	pipe.RPush(ctx, chatKey, raw)
	pipe.LTrim(ctx, chatKey, int64(-r.chatLimit), -1)
	pipe.Expire(ctx, chatKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to add chat message: %w", err)
	}

	return nil
}

func (r repo) GetChatMessages(ctx context.Context, roomId string) ([]room.ChatMessage, error) {
	chatKey := r.getChatKey(roomId)
	raws, err := r.rc.LRange(ctx, chatKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat messages: %w", err)
	}

	r.rc.Expire(ctx, chatKey, r.expireDuration)

	messages := make([]room.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var message room.ChatMessage
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}

		messages = append(messages, message)
	}

	return messages, nil
}
