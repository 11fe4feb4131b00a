package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/room"
)

func (s *service) roleOf(member room.Member) string {
	if member.IsOwner {
		return RoleOwner
	}

	return RoleViewer
}

func (s *service) memberFromRepo(memberId string, member room.Member) Member {
	return Member{
		Id:         memberId,
		Username:   member.Username,
		AvatarUrl:  member.AvatarUrl,
		Role:       s.roleOf(member),
		IsMuted:    member.IsMuted,
		IsCameraOn: member.IsCameraOn,
		JoinedAt:   member.JoinedAt,
	}
}

func (s *service) playerFromRepo(player room.Player) Player {
	return Player{
		MediaRef:  player.MediaRef,
		IsPlaying: player.IsPlaying,
		Position:  player.Position,
		UpdatedAt: player.UpdatedAt,
	}
}

func (s *service) getMemberlist(ctx context.Context, roomId string) ([]Member, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	memberlist := make([]Member, 0, len(memberIds))
	for _, memberId := range memberIds {
		member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
			MemberId: memberId,
			RoomId:   roomId,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		memberlist = append(memberlist, s.memberFromRepo(memberId, member))
	}

	return memberlist, nil
}

func (s *service) getConnsByRoomId(ctx context.Context, roomId string) ([]*websocket.Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]*websocket.Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		conn, err := s.connRepo.GetConn(memberId)
		if err != nil {
			// member without a live connection is simply skipped
			continue
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

// checkRoomExists maps a missing room to ErrRoomNotFound so callers see
// RoomGone instead of a repo-level miss.
func (s *service) checkRoomExists(ctx context.Context, roomId string) error {
	exists, err := s.roomRepo.IsRoomExists(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to check if room exists: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}

	return nil
}

// checkIfMember resolves the member or fails with ErrPermissionDenied:
// a non-participant has no authority over the room whatsoever.
func (s *service) checkIfMember(ctx context.Context, roomId, memberId string) (room.Member, error) {
	if err := s.checkRoomExists(ctx, roomId); err != nil {
		return room.Member{}, err
	}

	member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
		MemberId: memberId,
		RoomId:   roomId,
	})
	if err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return room.Member{}, ErrPermissionDenied
		}

		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

func (s *service) checkIfMemberOwner(ctx context.Context, roomId, memberId string) error {
	member, err := s.checkIfMember(ctx, roomId, memberId)
	if err != nil {
		return err
	}

	if !member.IsOwner {
		return ErrPermissionDenied
	}

	return nil
}
