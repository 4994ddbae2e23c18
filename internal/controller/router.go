package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIDMw)
	r.Use(c.requestLoggingMw)

	r.Get("/healthz", c.health)
	r.Get("/api/last-watched", c.lastWatched)

	r.HandleFunc("/ws/rooms", c.joinRoom)
	r.HandleFunc("/ws/rooms/{room-code}", c.joinRoom)

	return r
}
