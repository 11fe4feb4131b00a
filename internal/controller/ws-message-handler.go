package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/wsrouter"
)

const closeWriteTimeout = 5 * time.Second

// ws close codes handed to clients so they can tell a kick or a room
// deletion apart from an ordinary network drop.
const (
	closeCodeKicked      = 4001
	closeCodeRoomDeleted = 4002
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.loggingWSMw)
	mux.SetErrorHandler(func(ctx context.Context, conn *websocket.Conn, err error) {
		c.logger.DebugContext(ctx, "message handler failed", "error", err)
		c.writeError(ctx, conn, err)
	})

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)
	wsrouter.Handle(mux, "UPDATE_PLAYBACK", c.handleUpdatePlayback)
	wsrouter.Handle(mux, "SET_MEDIA", c.handleSetMedia)
	wsrouter.Handle(mux, "CHAT_MESSAGE", c.handleChatMessage)
	wsrouter.Handle(mux, "CHAT_TYPING", c.handleChatTyping)
	wsrouter.Handle(mux, "TOGGLE_MUTED", c.handleToggleMuted)
	wsrouter.Handle(mux, "TOGGLE_CAMERA", c.handleToggleCamera)
	wsrouter.Handle(mux, "KICK_MEMBER", c.handleKickMember)
	wsrouter.Handle(mux, "DELETE_ROOM", c.handleDeleteRoom)
	wsrouter.Handle(mux, "MESH_SIGNAL", c.handleMeshSignal)

	return mux
}

func (c controller) loggingWSMw(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
	return func(ctx context.Context, conn *websocket.Conn, payload any) error {
		c.logger.DebugContext(ctx, "handling message",
			"message_type", wsrouter.GetMessageTypeFromCtx(ctx),
			"room_id", c.getRoomIdFromCtx(ctx),
			"member_id", c.getMemberIdFromCtx(ctx),
		)

		return next(ctx, conn, payload)
	}
}

// validateInput reports field errors back on the connection and tells
// the caller whether to proceed.
func (c controller) validateInput(ctx context.Context, conn *websocket.Conn, input any) bool {
	fields, ok := c.validate.Validate(input)
	if ok {
		return true
	}

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "ERROR",
		Payload: errorPayload{
			Code:    "VALIDATION",
			Message: "invalid payload",
			Fields:  fields,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write validation error", "error", err)
	}

	return false
}

func (c controller) handleAlive(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
	return c.roomService.KeepAlive(ctx, c.getRoomIdFromCtx(ctx))
}

type updatePlaybackInput struct {
	IsPlaying bool    `json:"is_playing"`
	Position  float64 `json:"position" validate:"min=0"`
}

func (c controller) handleUpdatePlayback(ctx context.Context, conn *websocket.Conn, input updatePlaybackInput) error {
	if !c.validateInput(ctx, conn, input) {
		return nil
	}

	resp, err := c.roomService.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		RoomId:    c.getRoomIdFromCtx(ctx),
		SenderId:  c.getMemberIdFromCtx(ctx),
		IsPlaying: input.IsPlaying,
		Position:  input.Position,
	})
	if err != nil {
		return err
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "PLAYBACK_CHANGED",
		Payload: resp.Player,
	})

	return nil
}

type setMediaInput struct {
	MediaRef string `json:"media_ref" validate:"required"`
}

func (c controller) handleSetMedia(ctx context.Context, conn *websocket.Conn, input setMediaInput) error {
	if !c.validateInput(ctx, conn, input) {
		return nil
	}

	resp, err := c.roomService.UpdateMedia(ctx, &room.UpdateMediaParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		MediaRef: input.MediaRef,
	})
	if err != nil {
		return err
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "MEDIA_CHANGED",
		Payload: resp.Player,
	})

	return nil
}

type chatMessageInput struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (c controller) handleChatMessage(ctx context.Context, conn *websocket.Conn, input chatMessageInput) error {
	if !c.validateInput(ctx, conn, input) {
		return nil
	}

	resp, err := c.roomService.SendChatMessage(ctx, &room.SendChatMessageParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		Body:     input.Body,
	})
	if err != nil {
		return err
	}

	c.metrics.ChatMessages.Inc()
	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "CHAT_MESSAGE",
		Payload: resp.Message,
	})

	return nil
}

func (c controller) handleChatTyping(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
	memberId := c.getMemberIdFromCtx(ctx)

	resp, err := c.roomService.SendTyping(ctx, &room.SendTypingParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: memberId,
	})
	if err != nil {
		return err
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "CHAT_TYPING",
		Payload: map[string]any{
			"member_id": memberId,
		},
	})

	return nil
}

type toggleMutedInput struct {
	IsMuted bool `json:"is_muted"`
}

func (c controller) handleToggleMuted(ctx context.Context, conn *websocket.Conn, input toggleMutedInput) error {
	resp, err := c.roomService.UpdateMemberIsMuted(ctx, &room.UpdateMemberIsMutedParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		IsMuted:  input.IsMuted,
	})
	if err != nil {
		return err
	}

	c.broadcastMemberUpdate(ctx, resp)

	return nil
}

type toggleCameraInput struct {
	IsCameraOn bool `json:"is_camera_on"`
}

func (c controller) handleToggleCamera(ctx context.Context, conn *websocket.Conn, input toggleCameraInput) error {
	resp, err := c.roomService.UpdateMemberIsCameraOn(ctx, &room.UpdateMemberIsCameraOnParams{
		RoomId:     c.getRoomIdFromCtx(ctx),
		SenderId:   c.getMemberIdFromCtx(ctx),
		IsCameraOn: input.IsCameraOn,
	})
	if err != nil {
		return err
	}

	c.broadcastMemberUpdate(ctx, resp)

	return nil
}

func (c controller) broadcastMemberUpdate(ctx context.Context, resp room.UpdateMemberResponse) {
	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "MEMBER_UPDATED",
		Payload: resp.UpdatedMember,
	})
	c.broadcast(ctx, resp.Conns, &Output{
		Type: "ROSTER_CHANGED",
		Payload: map[string]any{
			"memberlist": resp.Memberlist,
		},
	})
}

type kickMemberInput struct {
	MemberId string `json:"member_id" validate:"required"`
}

func (c controller) handleKickMember(ctx context.Context, conn *websocket.Conn, input kickMemberInput) error {
	if !c.validateInput(ctx, conn, input) {
		return nil
	}

	resp, err := c.roomService.KickMember(ctx, &room.KickMemberParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		TargetId: input.MemberId,
	})
	if err != nil {
		return err
	}

	c.notifyClosedLinks(ctx, resp.ClosedLinks)

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "ROSTER_CHANGED",
		Payload: map[string]any{
			"memberlist":       resp.Memberlist,
			"kicked_member_id": input.MemberId,
		},
	})
	c.broadcast(ctx, resp.Conns, &Output{
		Type:    "CHAT_MESSAGE",
		Payload: resp.SystemMessage,
	})

	if resp.KickedConn != nil {
		if err := c.writeToConn(ctx, resp.KickedConn, &Output{Type: "KICKED"}); err != nil {
			c.logger.WarnContext(ctx, "failed to notify kicked member", "error", err)
		}
		c.closeConn(ctx, resp.KickedConn, closeCodeKicked, "kicked from room")
	}

	return nil
}

func (c controller) handleDeleteRoom(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
	resp, err := c.roomService.DeleteRoom(ctx, &room.DeleteRoomParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
	})
	if err != nil {
		return err
	}

	c.metrics.RoomsDeleted.Inc()

	c.broadcast(ctx, resp.Conns, &Output{Type: "ROOM_DELETED"})
	for _, memberConn := range resp.Conns {
		c.closeConn(ctx, memberConn, closeCodeRoomDeleted, "room deleted")
	}

	return nil
}

type meshSignalInput struct {
	Kind    string          `json:"kind" validate:"required,oneof=offer answer candidate established close"`
	ToId    string          `json:"to_id" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (c controller) handleMeshSignal(ctx context.Context, conn *websocket.Conn, input meshSignalInput) error {
	if !c.validateInput(ctx, conn, input) {
		return nil
	}

	resp, err := c.roomService.RelaySignal(ctx, &room.SignalParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		SenderId: c.getMemberIdFromCtx(ctx),
		TargetId: input.ToId,
		Kind:     room.SignalKind(input.Kind),
		Payload:  input.Payload,
	})
	if err != nil {
		return err
	}

	c.metrics.MeshSignals.Inc()

	if resp.TargetConn != nil {
		if err := c.writeToConn(ctx, resp.TargetConn, &Output{
			Type:    "MESH_SIGNAL",
			Payload: resp.Signal,
		}); err != nil {
			c.logger.WarnContext(ctx, "failed to relay signal", "error", err)
		}
	}

	return nil
}

// closeConn sends a close frame with an application close code before
// tearing the connection down, then lets the member's own read loop
// finish the disconnect flow.
func (c controller) closeConn(ctx context.Context, conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(closeWriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		c.logger.DebugContext(ctx, "failed to write close frame", "error", err)
	}
	conn.Close()
}
