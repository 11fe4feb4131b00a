package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/metrics"
	"github.com/watchroom/server/internal/service/presence"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/validator"
)

type iRoomService interface {
	CreateRoomSession(context.Context, *room.CreateRoomSessionParams) (string, error)
	JoinRoomSession(context.Context, *room.JoinRoomSessionParams) (string, error)
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	ReconnectMember(context.Context, *room.ReconnectMemberParams) (room.ReconnectMemberResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	DeleteRoom(context.Context, *room.DeleteRoomParams) (room.DeleteRoomResponse, error)
	KickMember(context.Context, *room.KickMemberParams) (room.KickMemberResponse, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	UpdateMedia(context.Context, *room.UpdateMediaParams) (room.UpdateMediaResponse, error)
	SendChatMessage(context.Context, *room.SendChatMessageParams) (room.SendChatMessageResponse, error)
	SendTyping(context.Context, *room.SendTypingParams) (room.SendTypingResponse, error)
	UpdateMemberIsMuted(context.Context, *room.UpdateMemberIsMutedParams) (room.UpdateMemberResponse, error)
	UpdateMemberIsCameraOn(context.Context, *room.UpdateMemberIsCameraOnParams) (room.UpdateMemberResponse, error)
	RelaySignal(context.Context, *room.SignalParams) (room.SignalResponse, error)
	KeepAlive(context.Context, string) error
}

type iPresenceService interface {
	SetStatus(context.Context, *presence.SetStatusParams) error
	Get(context.Context, string) (presence.Record, error)
	ListFor(context.Context, []string) ([]presence.Record, error)
}

type controller struct {
	roomService     iRoomService
	presenceService iPresenceService
	upgrader        websocket.Upgrader
	validate        *validator.Validator
	metrics         *metrics.Collector
	logger          *slog.Logger

	// websocket connections do not support concurrent writers, so
	// every write goes through a per-connection mutex; fan-outs are
	// additionally serialized so all subscribers observe broadcasts in
	// the same relative order
	writeLocks  *sync.Map
	broadcastMu *sync.Mutex
}

func NewController(roomService iRoomService, presenceService iPresenceService, collector *metrics.Collector, logger *slog.Logger) *controller {
	return &controller{
		roomService:     roomService,
		presenceService: presenceService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:    validator.New(),
		metrics:     collector,
		logger:      logger,
		writeLocks:  &sync.Map{},
		broadcastMu: &sync.Mutex{},
	}
}
