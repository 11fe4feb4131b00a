package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/presence"
	presenceservice "github.com/watchroom/server/internal/service/presence"
	"github.com/watchroom/server/internal/service/room"
)

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	connectToken := r.URL.Query().Get("token")
	if connectToken == "" {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "token query parameter is required"})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         conn,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create room", "error", err)
		c.writeError(r.Context(), conn, err)
		conn.Close()
		c.forgetConnWriteLock(conn)
		return
	}

	c.metrics.RoomsCreated.Inc()
	c.logger.InfoContext(r.Context(), "room created", "room_id", resp.RoomId, "member_id", resp.MemberId)

	c.serveMember(r.Context(), conn, resp.RoomId, resp.MemberId, resp.AuthToken, resp.Room)
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	connectToken := r.URL.Query().Get("token")
	if connectToken == "" {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "token query parameter is required"})
		return
	}
	roomId := chi.URLParam(r, "room-id")

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	resp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		ConnectToken: connectToken,
		RoomId:       roomId,
		Conn:         conn,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to join room", "error", err)
		c.writeError(r.Context(), conn, err)
		conn.Close()
		c.forgetConnWriteLock(conn)
		return
	}

	c.logger.InfoContext(r.Context(), "member joined", "room_id", resp.Room.RoomId, "member_id", resp.MemberId)

	c.broadcast(r.Context(), resp.Conns, &Output{
		Type: "ROSTER_CHANGED",
		Payload: map[string]any{
			"memberlist":    resp.Room.Memberlist,
			"joined_member": resp.JoinedMember,
		},
	})

	c.serveMember(r.Context(), conn, resp.Room.RoomId, resp.MemberId, resp.AuthToken, resp.Room)
}

// reconnectMember re-admits a dropped member using the auth token
// issued at create/join time and replays a fresh snapshot.
func (c controller) reconnectMember(w http.ResponseWriter, r *http.Request) {
	authToken := r.URL.Query().Get("token")
	if authToken == "" {
		c.writeJSON(w, http.StatusBadRequest, errorPayload{Code: "BAD_REQUEST", Message: "token query parameter is required"})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	resp, err := c.roomService.ReconnectMember(r.Context(), &room.ReconnectMemberParams{
		AuthToken: authToken,
		Conn:      conn,
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to reconnect member", "error", err)
		c.writeError(r.Context(), conn, err)
		conn.Close()
		c.forgetConnWriteLock(conn)
		return
	}

	c.logger.InfoContext(r.Context(), "member reconnected", "room_id", resp.RoomId, "member_id", resp.MemberId)

	c.serveMember(r.Context(), conn, resp.RoomId, resp.MemberId, authToken, resp.Room)
}

// serveMember owns the connection from admission to teardown: snapshot
// replay, message dispatch, then the disconnect flow that keeps room
// state and connection state from diverging.
func (c controller) serveMember(ctx context.Context, conn *websocket.Conn, roomId, memberId, authToken string, snapshot room.Room) {
	c.metrics.ActiveConnections.Inc()
	defer c.metrics.ActiveConnections.Dec()

	if err := c.presenceService.SetStatus(ctx, &presenceservice.SetStatusParams{
		UserId: memberId,
		Status: presence.StatusInRoom,
		RoomId: roomId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to set presence status", "error", err)
	}

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "ROOM_SNAPSHOT",
		Payload: map[string]any{
			"room":       snapshot,
			"member_id":  memberId,
			"auth_token": authToken,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write snapshot", "error", err)
	}

	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, memberId)

	if err := c.getWSRouter().ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}

	c.disconnectMember(ctx, conn, roomId, memberId)
}

func (c controller) disconnectMember(ctx context.Context, conn *websocket.Conn, roomId, memberId string) {
	defer conn.Close()
	defer c.forgetConnWriteLock(conn)

	resp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		RoomId:   roomId,
		MemberId: memberId,
		Conn:     conn,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	// the member re-attached on a newer connection before this one was
	// torn down; they keep their seat and the new read loop owns the
	// disconnect flow from here
	if resp.IsStaleConn {
		return
	}

	c.notifyClosedLinks(ctx, resp.ClosedLinks)

	if !resp.IsRoomEmptied {
		c.broadcast(ctx, resp.Conns, &Output{
			Type: "ROSTER_CHANGED",
			Payload: map[string]any{
				"memberlist": resp.Memberlist,
				"left_member_id": memberId,
			},
		})
	}

	if err := c.presenceService.SetStatus(ctx, &presenceservice.SetStatusParams{
		UserId: memberId,
		Status: presence.StatusOffline,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to set presence status", "error", err)
	}
}

func (c controller) notifyClosedLinks(ctx context.Context, closedLinks []room.ClosedLink) {
	for _, link := range closedLinks {
		if link.PeerConn == nil {
			continue
		}

		if err := c.writeToConn(ctx, link.PeerConn, &Output{
			Type:    "MESH_CLOSED",
			Payload: link.Intent,
		}); err != nil {
			c.logger.WarnContext(ctx, "failed to notify closed link", "error", err)
		}
	}
}
