package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/slotwatch/internal/health"
	"github.com/ashureev/slotwatch/internal/store"
)

// LivenessText is the static body of GET /.
const LivenessText = "✅ Bot is alive"

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles liveness and health endpoints.
type HealthHandler struct {
	repo    store.Repository
	monitor *health.Monitor
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, monitor *health.Monitor) *HealthHandler {
	return &HealthHandler{repo: repo, monitor: monitor}
}

// Liveness answers GET / with a static payload, independent of bot state.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LivenessText))
}

// Health returns component health and pings the history database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		h.monitor.Update(health.History, health.Unhealthy, "database unreachable")
	} else if c, ok := h.monitor.Get(health.History); !ok || c.Status == health.Unhealthy {
		h.monitor.Update(health.History, health.Healthy, "")
	}

	overall := h.monitor.Overall()
	statusCode := http.StatusOK
	if overall == health.Unhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, map[string]any{
		"status": overall,
		"checks": h.monitor.All(),
	})
}

// RegisterHealth registers the health check routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/", h.Liveness)
	r.Head("/", h.Liveness)
	r.Get("/health", h.Health)
}
