package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/validator"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Code    string                      `json:"code"`
	Message string                      `json:"message"`
	Fields  []validator.ValidationError `json:"fields,omitempty"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrPermissionDenied):
		return "FORBIDDEN"
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_GONE"
	case errors.Is(err, room.ErrMemberNotFound):
		return "NOT_FOUND"
	case errors.Is(err, room.ErrAlreadyInRoom):
		return "CONFLICT"
	case errors.Is(err, room.ErrRoomUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, room.ErrSessionNotFound), errors.Is(err, room.ErrInvalidToken):
		return "INVALID_TOKEN"
	default:
		return "INTERNAL"
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusGone
	case errors.Is(err, room.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrAlreadyInRoom):
		return http.StatusConflict
	case errors.Is(err, room.ErrRoomUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, room.ErrSessionNotFound), errors.Is(err, room.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports a failed operation back to its originator. It is
// never skipped: a silently dropped authority error would look like a
// no-op to the client.
func (c controller) writeError(ctx context.Context, conn *websocket.Conn, err error) {
	code := errorCode(err)
	message := err.Error()
	if code == "INTERNAL" {
		message = "internal error"
	}

	if writeErr := c.writeToConn(ctx, conn, &Output{
		Type: "ERROR",
		Payload: errorPayload{
			Code:    code,
			Message: message,
		},
	}); writeErr != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", writeErr)
	}
}

// lockConnWrite returns the write mutex owning conn, creating it on first
// use. Websocket connections allow at most one concurrent writer, and
// handler goroutines of other members write to conns they do not own.
func (c controller) lockConnWrite(conn *websocket.Conn) *sync.Mutex {
	mu, _ := c.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c controller) forgetConnWriteLock(conn *websocket.Conn) {
	c.writeLocks.Delete(conn)
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	mu := c.lockConnWrite(conn)
	mu.Lock()
	defer mu.Unlock()

	return conn.WriteJSON(output)
}

// broadcast fans an event out to every subscriber of a room. Fan-outs hold
// broadcastMu for their whole duration so that any two broadcasts reach
// every shared subscriber in the same relative order. A failed write drops
// only that subscriber; its own disconnect flow recovers it with a fresh
// snapshot. Broadcast failures never fail the originating request.
func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	c.metrics.BroadcastEvents.Inc()

	c.broadcastMu.Lock()
	defer c.broadcastMu.Unlock()

	for _, conn := range conns {
		if err := c.writeToConn(ctx, conn, output); err != nil {
			c.logger.WarnContext(ctx, "failed to write to conn, dropping subscriber", "error", err)
			conn.Close()
		}
	}
}

func (c controller) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (c controller) writeHTTPError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	message := err.Error()
	if code == "INTERNAL" {
		message = "internal error"
	}

	c.writeJSON(w, httpStatus(err), errorPayload{
		Code:    code,
		Message: message,
	})
}
