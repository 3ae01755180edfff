package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/slotwatch/internal/middleware"
)

// NewRouter wires the public liveness routes and the token-protected
// operator routes.
func NewRouter(h *Handler, hh *HealthHandler, feed http.Handler, adminToken string) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	hh.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(adminToken))
		h.RegisterRoutes(r)
		if feed != nil {
			r.Handle("/ws/events", feed)
		}
	})

	return r
}
