package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Route("/room", func(r chi.Router) {
			r.Post("/create-session", c.createRoomSession)
			r.Post("/join-session", c.joinRoomSession)
		})

		r.Route("/presence", func(r chi.Router) {
			r.Get("/", c.listPresence)
			r.Post("/status", c.setPresenceStatus)
		})

		r.Route("/ws", func(r chi.Router) {
			r.Route("/room", func(r chi.Router) {
				r.Get("/create", c.createRoom)
				r.Get("/reconnect", c.reconnectMember)
				r.Route("/{room-id}", func(r chi.Router) {
					r.Get("/join", c.joinRoom)
				})
			})
		})
	})

	return r
}
