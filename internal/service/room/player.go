package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/room"
)

type UpdatePlaybackParams struct {
	RoomId    string
	SenderId  string
	IsPlaying bool
	Position  float64
}

type UpdatePlaybackResponse struct {
	Player Player
	Conns  []*websocket.Conn
}

// UpdatePlayback applies an owner-issued play/pause/seek and doubles as
// the owner's position heartbeat. The timestamp is stamped here, not
// taken from the client, so follower drift math never depends on client
// clocks.
func (s *service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if err := s.checkIfMemberOwner(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlaybackResponse{}, err
	}

	updatedAt := s.now().UnixMilli()
	if err := s.roomRepo.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
		RoomId:    params.RoomId,
		IsPlaying: params.IsPlaying,
		Position:  params.Position,
		UpdatedAt: updatedAt,
	}); err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to update player state: %w", err)
	}

	player, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
	if err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to get player: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return UpdatePlaybackResponse{}, err
	}

	return UpdatePlaybackResponse{
		Player: s.playerFromRepo(player),
		Conns:  conns,
	}, nil
}

type UpdateMediaParams struct {
	RoomId   string
	SenderId string
	MediaRef string
}

type UpdateMediaResponse struct {
	Player Player
	Conns  []*websocket.Conn
}

// UpdateMedia switches the room's media. The previous position is
// meaningless for the new media, so playback resets to paused at zero.
func (s *service) UpdateMedia(ctx context.Context, params *UpdateMediaParams) (UpdateMediaResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if err := s.checkIfMemberOwner(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdateMediaResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerMedia(ctx, &room.UpdatePlayerMediaParams{
		RoomId:    params.RoomId,
		MediaRef:  params.MediaRef,
		UpdatedAt: s.now().UnixMilli(),
	}); err != nil {
		return UpdateMediaResponse{}, fmt.Errorf("failed to update player media: %w", err)
	}

	player, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
	if err != nil {
		return UpdateMediaResponse{}, fmt.Errorf("failed to get player: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return UpdateMediaResponse{}, err
	}

	return UpdateMediaResponse{
		Player: s.playerFromRepo(player),
		Conns:  conns,
	}, nil
}
