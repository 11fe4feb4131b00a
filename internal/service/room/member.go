package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/room"
)

type KickMemberParams struct {
	RoomId   string
	SenderId string
	TargetId string
}

type KickMemberResponse struct {
	KickedConn    *websocket.Conn
	Memberlist    []Member
	Conns         []*websocket.Conn
	SystemMessage ChatMessage
	ClosedLinks   []ClosedLink
}

// KickMember removes the target and bans their user id for the lifetime
// of the room, so re-joining fails until the room dies.
func (s *service) KickMember(ctx context.Context, params *KickMemberParams) (KickMemberResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if err := s.checkIfMemberOwner(ctx, params.RoomId, params.SenderId); err != nil {
		return KickMemberResponse{}, err
	}

	if params.TargetId == params.SenderId {
		return KickMemberResponse{}, ErrPermissionDenied
	}

	target, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
		MemberId: params.TargetId,
		RoomId:   params.RoomId,
	})
	if err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return KickMemberResponse{}, ErrMemberNotFound
		}

		return KickMemberResponse{}, fmt.Errorf("failed to get member: %w", err)
	}

	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.TargetId,
		RoomId:   params.RoomId,
	}); err != nil {
		return KickMemberResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	if err := s.roomRepo.BanMember(ctx, &room.BanMemberParams{
		MemberId: params.TargetId,
		RoomId:   params.RoomId,
	}); err != nil {
		return KickMemberResponse{}, fmt.Errorf("failed to ban member: %w", err)
	}

	closedLinks := s.closeLinksOf(params.RoomId, params.TargetId)

	kickedConn, _ := s.connRepo.GetConn(params.TargetId)
	s.connRepo.RemoveByMemberId(params.TargetId)

	systemMessage, err := s.appendSystemMessage(ctx, params.RoomId, fmt.Sprintf("%s was removed from the room", target.Username))
	if err != nil {
		return KickMemberResponse{}, err
	}

	memberlist, err := s.getMemberlist(ctx, params.RoomId)
	if err != nil {
		return KickMemberResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return KickMemberResponse{}, err
	}

	return KickMemberResponse{
		KickedConn:    kickedConn,
		Memberlist:    memberlist,
		Conns:         conns,
		SystemMessage: systemMessage,
		ClosedLinks:   closedLinks,
	}, nil
}

type UpdateMemberIsMutedParams struct {
	RoomId   string
	SenderId string
	IsMuted  bool
}

type UpdateMemberResponse struct {
	UpdatedMember Member
	Memberlist    []Member
	Conns         []*websocket.Conn
}

// UpdateMemberIsMuted toggles the sender's own mute flag. Members have
// no authority over each other's tracks.
func (s *service) UpdateMemberIsMuted(ctx context.Context, params *UpdateMemberIsMutedParams) (UpdateMemberResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if _, err := s.checkIfMember(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdateMemberResponse{}, err
	}

	if err := s.roomRepo.UpdateMemberIsMuted(ctx, &room.UpdateMemberIsMutedParams{
		MemberId: params.SenderId,
		RoomId:   params.RoomId,
		IsMuted:  params.IsMuted,
	}); err != nil {
		return UpdateMemberResponse{}, fmt.Errorf("failed to update member is_muted: %w", err)
	}

	return s.memberUpdateResponse(ctx, params.RoomId, params.SenderId)
}

type UpdateMemberIsCameraOnParams struct {
	RoomId     string
	SenderId   string
	IsCameraOn bool
}

func (s *service) UpdateMemberIsCameraOn(ctx context.Context, params *UpdateMemberIsCameraOnParams) (UpdateMemberResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if _, err := s.checkIfMember(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdateMemberResponse{}, err
	}

	if err := s.roomRepo.UpdateMemberIsCameraOn(ctx, &room.UpdateMemberIsCameraOnParams{
		MemberId:   params.SenderId,
		RoomId:     params.RoomId,
		IsCameraOn: params.IsCameraOn,
	}); err != nil {
		return UpdateMemberResponse{}, fmt.Errorf("failed to update member is_camera_on: %w", err)
	}

	return s.memberUpdateResponse(ctx, params.RoomId, params.SenderId)
}

func (s *service) memberUpdateResponse(ctx context.Context, roomId, memberId string) (UpdateMemberResponse, error) {
	member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
		MemberId: memberId,
		RoomId:   roomId,
	})
	if err != nil {
		return UpdateMemberResponse{}, fmt.Errorf("failed to get member: %w", err)
	}

	memberlist, err := s.getMemberlist(ctx, roomId)
	if err != nil {
		return UpdateMemberResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return UpdateMemberResponse{}, err
	}

	return UpdateMemberResponse{
		UpdatedMember: s.memberFromRepo(memberId, member),
		Memberlist:    memberlist,
		Conns:         conns,
	}, nil
}
