package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchroom/server/internal/repository/presence"
)

var ErrUnknownStatus = errors.New("unknown presence status")

type iPresenceRepo interface {
	SetRecord(context.Context, *presence.SetRecordParams) error
	GetRecord(context.Context, string) (presence.Record, error)
	GetRecords(context.Context, []string) ([]presence.Record, error)
}

type Record struct {
	UserId    string `json:"user_id"`
	Status    string `json:"status"`
	RoomId    string `json:"room_id,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

type service struct {
	presenceRepo iPresenceRepo
	now          func() time.Time
}

func NewService(presenceRepo iPresenceRepo) *service {
	return &service{
		presenceRepo: presenceRepo,
		now:          time.Now,
	}
}

type SetStatusParams struct {
	UserId string
	Status string
	RoomId string
}

// SetStatus records the user's activity. It is purely observational
// bookkeeping: nothing in room handling ever reads it.
func (s *service) SetStatus(ctx context.Context, params *SetStatusParams) error {
	switch params.Status {
	case presence.StatusOffline, presence.StatusOnline, presence.StatusWatching, presence.StatusInRoom:
	default:
		return ErrUnknownStatus
	}

	roomId := params.RoomId
	if params.Status != presence.StatusInRoom {
		roomId = ""
	}

	if err := s.presenceRepo.SetRecord(ctx, &presence.SetRecordParams{
		UserId:    params.UserId,
		Status:    params.Status,
		RoomId:    roomId,
		UpdatedAt: s.now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to set presence record: %w", err)
	}

	return nil
}

func (s *service) Get(ctx context.Context, userId string) (Record, error) {
	record, err := s.presenceRepo.GetRecord(ctx, userId)
	if err != nil {
		if errors.Is(err, presence.ErrPresenceNotFound) {
			return Record{UserId: userId, Status: presence.StatusOffline}, nil
		}

		return Record{}, fmt.Errorf("failed to get presence record: %w", err)
	}

	return recordFromRepo(record), nil
}

// ListFor resolves presence for a friends list in one call.
func (s *service) ListFor(ctx context.Context, userIds []string) ([]Record, error) {
	records, err := s.presenceRepo.GetRecords(ctx, userIds)
	if err != nil {
		return nil, fmt.Errorf("failed to get presence records: %w", err)
	}

	result := make([]Record, 0, len(records))
	for _, record := range records {
		result = append(result, recordFromRepo(record))
	}

	return result, nil
}

func recordFromRepo(record presence.Record) Record {
	return Record{
		UserId:    record.UserId,
		Status:    record.Status,
		RoomId:    record.RoomId,
		UpdatedAt: record.UpdatedAt,
	}
}
