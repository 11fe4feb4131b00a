package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type ErrorHandlerFunc func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes       map[string]HandlerFunc[json.RawMessage]
	middlewares  []Middleware
	errorHandler ErrorHandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc[json.RawMessage])}
}

// SetErrorHandler installs a callback invoked when a handler returns an
// error. The connection keeps being served.
func (r *WSRouter) SetErrorHandler(h ErrorHandlerFunc) {
	r.errorHandler = h
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

// Handle registers a typed handler for a message type. The payload is
// unmarshalled into T before the handler runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		wrapped := func(ctx context.Context, conn *websocket.Conn, p any) error {
			return handler(ctx, conn, p.(T))
		}
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			wrapped = r.middlewares[i](wrapped)
		}

		return wrapped(ctx, conn, input)
	}
}

// ServeConn reads messages from the connection until it fails and
// dispatches each one to its registered handler.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)

		handler, exists := r.routes[msg.Type]
		if !exists {
			// reported through the error handler so the router never
			// writes to the connection itself; the owner may serialize
			// writes across goroutines
			if r.errorHandler != nil {
				r.errorHandler(msgCtx, conn, fmt.Errorf("unknown message type %q", msg.Type))
			}
			continue
		}

		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			if r.errorHandler != nil {
				r.errorHandler(msgCtx, conn, err)
			}
		}
	}
}
