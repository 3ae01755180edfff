package feed

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams hub events to a websocket client as JSON.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
}

// NewWebSocketHandler creates a handler over hub. allowedOrigin "*" accepts
// any origin.
func NewWebSocketHandler(hub *Hub, allowedOrigin string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, allowedOrigin: allowedOrigin}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := uuid.NewString()
	events := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(id)

	// The feed is one-way; CloseRead handles control frames and cancels ctx
	// when the client goes away.
	ctx := ws.CloseRead(r.Context())
	h.writeLoop(ctx, ws, events, id)
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, events <-chan Event, id string) {
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Feed client disconnected", "subscriber_id", id)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, ws, e)
			cancel()
			if err != nil {
				slog.Debug("Feed write failed", "subscriber_id", id, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
