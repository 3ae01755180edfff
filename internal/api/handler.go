// Package api provides the HTTP and gRPC operator surface of the bot.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/health"
	"github.com/ashureev/slotwatch/internal/monitor"
	"github.com/ashureev/slotwatch/internal/registry"
	"github.com/ashureev/slotwatch/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SchedulerStatus is satisfied by *monitor.Scheduler.
type SchedulerStatus interface {
	Status() monitor.Status
}

// FeedStats is satisfied by *feed.Hub.
type FeedStats interface {
	Len() int
}

// Handler serves the operator API. It never exposes credentials.
type Handler struct {
	registry  *registry.Registry
	scheduler SchedulerStatus
	history   store.Repository
	health    *health.Monitor
	feed      FeedStats
	startedAt time.Time
}

// NewHandler creates a new Handler. feed may be nil.
func NewHandler(reg *registry.Registry, sched SchedulerStatus, history store.Repository, hm *health.Monitor, feed FeedStats) *Handler {
	return &Handler{
		registry:  reg,
		scheduler: sched,
		history:   history,
		health:    hm,
		feed:      feed,
		startedAt: time.Now(),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type statusResponse struct {
	Status          health.Status  `json:"status"`
	Uptime          string         `json:"uptime"`
	Scheduler       monitor.Status `json:"scheduler"`
	Registry        registry.Stats `json:"registry"`
	FeedSubscribers int            `json:"feed_subscribers"`
	Components      []health.Check `json:"components"`
}

// Status reports scheduler, registry and component state.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:     h.health.Overall(),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Scheduler:  h.scheduler.Status(),
		Registry:   h.registry.Stats(),
		Components: h.health.All(),
	}
	if h.feed != nil {
		resp.FeedSubscribers = h.feed.Len()
	}
	JSON(w, http.StatusOK, resp)
}

// ChatHistory returns recent check outcomes for one chat.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	chatID := domain.ChatID(chi.URLParam(r, "chatID"))
	if chatID == "" {
		Error(w, http.StatusBadRequest, "chat id required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.RecentChecks(r.Context(), chatID, limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"chat_id": chatID,
		"checks":  records,
	})
}

// RegisterRoutes registers the operator API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status", h.Status)
	r.Get("/api/chats/{chatID}/history", h.ChatHistory)
}
