package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/room"
)

const roomIdLength = 8

type CreateRoomSessionParams struct {
	UserId          string
	Username        string
	AvatarUrl       string
	InitialMediaRef string
}

// CreateRoomSession stores the identity handed over by the identity
// provider and returns a single-use connect token for the websocket
// upgrade.
func (s *service) CreateRoomSession(ctx context.Context, params *CreateRoomSessionParams) (string, error) {
	connectToken := uuid.NewString()
	if err := s.roomRepo.SetCreateRoomSession(ctx, &room.SetCreateRoomSessionParams{
		Token:           connectToken,
		UserId:          params.UserId,
		Username:        params.Username,
		AvatarUrl:       params.AvatarUrl,
		InitialMediaRef: params.InitialMediaRef,
	}); err != nil {
		return "", fmt.Errorf("failed to set create room session: %w", err)
	}

	return connectToken, nil
}

type JoinRoomSessionParams struct {
	UserId    string
	Username  string
	AvatarUrl string
	RoomId    string
}

func (s *service) JoinRoomSession(ctx context.Context, params *JoinRoomSessionParams) (string, error) {
	if err := s.checkRoomExists(ctx, params.RoomId); err != nil {
		return "", err
	}

	banned, err := s.roomRepo.IsMemberBanned(ctx, &room.BanMemberParams{
		MemberId: params.UserId,
		RoomId:   params.RoomId,
	})
	if err != nil {
		return "", fmt.Errorf("failed to check if member is banned: %w", err)
	}
	if banned {
		return "", ErrPermissionDenied
	}

	connectToken := uuid.NewString()
	if err := s.roomRepo.SetJoinRoomSession(ctx, &room.SetJoinRoomSessionParams{
		Token:     connectToken,
		UserId:    params.UserId,
		Username:  params.Username,
		AvatarUrl: params.AvatarUrl,
		RoomId:    params.RoomId,
	}); err != nil {
		return "", fmt.Errorf("failed to set join room session: %w", err)
	}

	return connectToken, nil
}

type CreateRoomParams struct {
	ConnectToken string
	Conn         *websocket.Conn
}

type CreateRoomResponse struct {
	RoomId    string
	MemberId  string
	AuthToken string
	Room      Room
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	session, err := s.roomRepo.GetCreateRoomSession(ctx, params.ConnectToken)
	if err != nil {
		if errors.Is(err, room.ErrSessionNotFound) {
			return CreateRoomResponse{}, ErrSessionNotFound
		}

		return CreateRoomResponse{}, fmt.Errorf("failed to get create room session: %w", err)
	}

	roomId, err := s.generateRoomId(ctx)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	now := s.now().UnixMilli()

	unlock := s.lockRoom(roomId)
	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		RoomId:    roomId,
		HostId:    session.UserId,
		CreatedAt: now,
	}); err != nil {
		unlock()
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId:   session.UserId,
		RoomId:     roomId,
		Username:   session.Username,
		AvatarUrl:  session.AvatarUrl,
		IsOwner:    true,
		IsMuted:    true,
		IsCameraOn: false,
		JoinedAt:   now,
	}); err != nil {
		unlock()
		return CreateRoomResponse{}, fmt.Errorf("failed to set member: %w", err)
	}

	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomId:    roomId,
		MediaRef:  session.InitialMediaRef,
		IsPlaying: false,
		Position:  0,
		UpdatedAt: now,
	}); err != nil {
		unlock()
		return CreateRoomResponse{}, fmt.Errorf("failed to set player: %w", err)
	}

	if err := s.connRepo.Add(params.Conn, session.UserId); err != nil {
		unlock()
		return CreateRoomResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	roomState, err := s.getRoomState(ctx, roomId)
	unlock()
	if err != nil {
		return CreateRoomResponse{}, err
	}

	authToken, err := s.generateAuthToken(session.UserId, roomId)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to generate auth token: %w", err)
	}

	return CreateRoomResponse{
		RoomId:    roomId,
		MemberId:  session.UserId,
		AuthToken: authToken,
		Room:      roomState,
	}, nil
}

type JoinRoomParams struct {
	ConnectToken string
	RoomId       string
	Conn         *websocket.Conn
}

type JoinRoomResponse struct {
	MemberId     string
	AuthToken    string
	JoinedMember Member
	Room         Room
	Conns        []*websocket.Conn
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	session, err := s.roomRepo.GetJoinRoomSession(ctx, params.ConnectToken)
	if err != nil {
		if errors.Is(err, room.ErrSessionNotFound) {
			return JoinRoomResponse{}, ErrSessionNotFound
		}

		return JoinRoomResponse{}, fmt.Errorf("failed to get join room session: %w", err)
	}

	roomId := session.RoomId
	if params.RoomId != "" && params.RoomId != roomId {
		return JoinRoomResponse{}, ErrPermissionDenied
	}

	unlock := s.lockRoom(roomId)
	defer unlock()

	if err := s.checkRoomExists(ctx, roomId); err != nil {
		return JoinRoomResponse{}, err
	}

	banned, err := s.roomRepo.IsMemberBanned(ctx, &room.BanMemberParams{
		MemberId: session.UserId,
		RoomId:   roomId,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to check if member is banned: %w", err)
	}
	if banned {
		return JoinRoomResponse{}, ErrPermissionDenied
	}

	if _, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
		MemberId: session.UserId,
		RoomId:   roomId,
	}); err == nil {
		return JoinRoomResponse{}, ErrAlreadyInRoom
	} else if !errors.Is(err, room.ErrMemberNotFound) {
		return JoinRoomResponse{}, fmt.Errorf("failed to get member: %w", err)
	}

	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
	}
	if len(memberIds) >= s.membersLimit {
		return JoinRoomResponse{}, ErrRoomUnavailable
	}

	now := s.now().UnixMilli()
	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId:   session.UserId,
		RoomId:     roomId,
		Username:   session.Username,
		AvatarUrl:  session.AvatarUrl,
		IsOwner:    false,
		IsMuted:    true,
		IsCameraOn: false,
		JoinedAt:   now,
	}); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to set member: %w", err)
	}

	if err := s.connRepo.Add(params.Conn, session.UserId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	roomState, err := s.getRoomState(ctx, roomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	authToken, err := s.generateAuthToken(session.UserId, roomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to generate auth token: %w", err)
	}

	joinedMember := Member{
		Id:         session.UserId,
		Username:   session.Username,
		AvatarUrl:  session.AvatarUrl,
		Role:       RoleViewer,
		IsMuted:    true,
		IsCameraOn: false,
		JoinedAt:   now,
	}

	return JoinRoomResponse{
		MemberId:     session.UserId,
		AuthToken:    authToken,
		JoinedMember: joinedMember,
		Room:         roomState,
		Conns:        conns,
	}, nil
}

type ReconnectMemberParams struct {
	AuthToken string
	Conn      *websocket.Conn
}

type ReconnectMemberResponse struct {
	MemberId string
	RoomId   string
	Room     Room
	Conns    []*websocket.Conn
}

// ReconnectMember re-attaches a previously admitted member after a
// dropped connection, replaying a fresh snapshot. Fails with
// ErrRoomNotFound once the room has been reaped.
func (s *service) ReconnectMember(ctx context.Context, params *ReconnectMemberParams) (ReconnectMemberResponse, error) {
	claims, err := s.parseAuthToken(params.AuthToken)
	if err != nil {
		return ReconnectMemberResponse{}, ErrPermissionDenied
	}

	unlock := s.lockRoom(claims.RoomId)
	defer unlock()

	if _, err := s.checkIfMember(ctx, claims.RoomId, claims.MemberId); err != nil {
		return ReconnectMemberResponse{}, err
	}

	// a stale mapping from the dropped connection may still be around
	s.connRepo.RemoveByMemberId(claims.MemberId)

	if err := s.connRepo.Add(params.Conn, claims.MemberId); err != nil {
		return ReconnectMemberResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	roomState, err := s.getRoomState(ctx, claims.RoomId)
	if err != nil {
		return ReconnectMemberResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, claims.RoomId)
	if err != nil {
		return ReconnectMemberResponse{}, err
	}

	return ReconnectMemberResponse{
		MemberId: claims.MemberId,
		RoomId:   claims.RoomId,
		Room:     roomState,
		Conns:    conns,
	}, nil
}

type DisconnectMemberParams struct {
	RoomId   string
	MemberId string
	Conn     *websocket.Conn
}

type DisconnectMemberResponse struct {
	Memberlist    []Member
	Conns         []*websocket.Conn
	ClosedLinks   []ClosedLink
	IsRoomEmptied bool
	IsStaleConn   bool
}

// DisconnectMember covers voluntary leave, dropped connections and the
// tail end of a kick. The departing owner is not replaced: the room
// simply has no owner until it is reaped.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if params.Conn != nil {
		// the dying connection tears the seat down only while it is
		// still the member's active one: once the member has
		// re-attached on a new connection, the old one failing must
		// not evict them
		if active, err := s.connRepo.GetConn(params.MemberId); err == nil && active != params.Conn {
			return DisconnectMemberResponse{IsStaleConn: true}, nil
		}

		s.connRepo.RemoveByConn(params.Conn)
	} else {
		s.connRepo.RemoveByMemberId(params.MemberId)
	}

	exists, err := s.roomRepo.IsRoomExists(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to check if room exists: %w", err)
	}
	if !exists {
		// room reaped or deleted while the member was connected
		return DisconnectMemberResponse{}, nil
	}

	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
	}); err != nil && !errors.Is(err, room.ErrMemberNotFound) {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	closedLinks := s.closeLinksOf(params.RoomId, params.MemberId)

	memberlist, err := s.getMemberlist(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	isRoomEmptied := len(memberlist) == 0
	if isRoomEmptied {
		if err := s.roomRepo.ExpireRoom(ctx, params.RoomId, s.now().Add(s.roomExp)); err != nil {
			return DisconnectMemberResponse{}, err
		}
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, err
	}

	return DisconnectMemberResponse{
		Memberlist:    memberlist,
		Conns:         conns,
		ClosedLinks:   closedLinks,
		IsRoomEmptied: isRoomEmptied,
	}, nil
}

type DeleteRoomParams struct {
	RoomId   string
	SenderId string
}

type DeleteRoomResponse struct {
	Conns []*websocket.Conn
}

// DeleteRoom is host-only; everyone else gets ErrPermissionDenied.
func (s *service) DeleteRoom(ctx context.Context, params *DeleteRoomParams) (DeleteRoomResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return DeleteRoomResponse{}, ErrRoomNotFound
		}

		return DeleteRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	if rm.HostId != params.SenderId {
		return DeleteRoomResponse{}, ErrPermissionDenied
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return DeleteRoomResponse{}, err
	}

	s.meshRepo.RemoveByRoom(params.RoomId)

	if err := s.roomRepo.RemoveRoom(ctx, params.RoomId); err != nil {
		return DeleteRoomResponse{}, fmt.Errorf("failed to remove room: %w", err)
	}

	s.forgetRoomLock(params.RoomId)

	return DeleteRoomResponse{Conns: conns}, nil
}

// GetRoomSnapshot reads the full room state atomically with respect to
// the room's writer.
func (s *service) GetRoomSnapshot(ctx context.Context, roomId string) (Room, error) {
	unlock := s.lockRoom(roomId)
	defer unlock()

	return s.getRoomState(ctx, roomId)
}

func (s *service) getRoomState(ctx context.Context, roomId string) (Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return Room{}, ErrRoomNotFound
		}

		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		return Room{}, fmt.Errorf("failed to get player: %w", err)
	}

	memberlist, err := s.getMemberlist(ctx, roomId)
	if err != nil {
		return Room{}, err
	}

	messages, err := s.roomRepo.GetChatMessages(ctx, roomId)
	if err != nil {
		return Room{}, err
	}

	serviceMessages := make([]ChatMessage, 0, len(messages))
	for _, message := range messages {
		serviceMessages = append(serviceMessages, ChatMessage(message))
	}

	return Room{
		RoomId:     roomId,
		HostId:     rm.HostId,
		Player:     s.playerFromRepo(player),
		Memberlist: memberlist,
		Messages:   serviceMessages,
	}, nil
}

// KeepAlive pushes back the reap deadline for a room that still has
// live traffic.
func (s *service) KeepAlive(ctx context.Context, roomId string) error {
	if err := s.checkRoomExists(ctx, roomId); err != nil {
		return err
	}

	return s.roomRepo.RefreshRoomExpiration(ctx, roomId)
}

func (s *service) generateRoomId(ctx context.Context) (string, error) {
	for range [5]struct{}{} {
		roomId := roomIdPrefix + s.generator.GenerateRandomString(roomIdLength)

		exists, err := s.roomRepo.IsRoomExists(ctx, roomId)
		if err != nil {
			return "", fmt.Errorf("failed to check if room exists: %w", err)
		}
		if !exists {
			return roomId, nil
		}
	}

	return "", ErrRoomUnavailable
}
