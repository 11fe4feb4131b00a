package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/mesh"
	"github.com/watchroom/server/internal/repository/room"
	"github.com/watchroom/server/pkg/randstr"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrAlreadyInRoom    = errors.New("already in room")
	ErrSessionNotFound  = errors.New("session not found")
	ErrRoomUnavailable  = errors.New("room unavailable")
)

const roomIdPrefix = "room-"

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	IsRoomExists(context.Context, string) (bool, error)
	RefreshRoomExpiration(context.Context, string) error
	ExpireRoom(context.Context, string, time.Time) error
	RemoveRoom(context.Context, string) error
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	GetMember(context.Context, *room.GetMemberParams) (room.Member, error)
	GetMemberIds(context.Context, string) ([]string, error)
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	BanMember(context.Context, *room.BanMemberParams) error
	IsMemberBanned(context.Context, *room.BanMemberParams) (bool, error)
	UpdateMemberIsMuted(context.Context, *room.UpdateMemberIsMutedParams) error
	UpdateMemberIsCameraOn(context.Context, *room.UpdateMemberIsCameraOnParams) error
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(context.Context, string) (room.Player, error)
	UpdatePlayerState(context.Context, *room.UpdatePlayerStateParams) error
	UpdatePlayerMedia(context.Context, *room.UpdatePlayerMediaParams) error
	// chat
	IncrementChatSeq(context.Context, string) (int, error)
	AddChatMessage(context.Context, *room.AddChatMessageParams) error
	GetChatMessages(context.Context, string) ([]room.ChatMessage, error)
	// session
	SetCreateRoomSession(context.Context, *room.SetCreateRoomSessionParams) error
	GetCreateRoomSession(context.Context, string) (room.CreateRoomSession, error)
	SetJoinRoomSession(context.Context, *room.SetJoinRoomSessionParams) error
	GetJoinRoomSession(context.Context, string) (room.JoinRoomSession, error)
}

type iConnRepo interface {
	Add(*websocket.Conn, string) error
	RemoveByMemberId(string) error
	RemoveByConn(*websocket.Conn) error
	GetConn(string) (*websocket.Conn, error)
	GetMemberId(*websocket.Conn) (string, error)
}

type iMeshRepo interface {
	SetIntent(*mesh.Intent)
	GetIntent(roomId, fromId, toId string) (mesh.Intent, error)
	RemoveIntent(roomId, fromId, toId string)
	RemoveByMember(roomId, memberId string) []mesh.Intent
	RemoveByRoom(roomId string) []mesh.Intent
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	Secret       string
	MembersLimit int
	RoomExp      time.Duration
}

type service struct {
	roomRepo     iRoomRepo
	connRepo     iConnRepo
	meshRepo     iMeshRepo
	generator    iGenerator
	secret       string
	membersLimit int
	roomExp      time.Duration
	now          func() time.Time

	roomLocks sync.Map
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, meshRepo iMeshRepo, cfg *Config) *service {
	s := service{
		roomRepo:     roomRepo,
		connRepo:     connRepo,
		meshRepo:     meshRepo,
		secret:       cfg.Secret,
		membersLimit: cfg.MembersLimit,
		roomExp:      cfg.RoomExp,
		now:          time.Now,
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

// lockRoom serializes mutations against one room. The lock is held only
// for the in-memory and redis state transition, never for broadcast
// writes or external lookups.
func (s *service) lockRoom(roomId string) func() {
	v, _ := s.roomLocks.LoadOrStore(roomId, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

// forgetRoomLock drops the room's mutex once the room is removed. A
// goroutine already blocked on the old mutex can still acquire it after
// the delete, concurrently with a holder of a freshly stored one; that is
// tolerable because every mutating section re-checks room existence under
// its lock and fails with ErrRoomNotFound once the room is gone.
func (s *service) forgetRoomLock(roomId string) {
	s.roomLocks.Delete(roomId)
}
