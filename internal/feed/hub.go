// Package feed broadcasts scheduler events to operator websocket clients.
package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/slotwatch/internal/domain"
)

// EventType names a scheduler event.
type EventType string

const (
	EventCycleStarted  EventType = "cycle_started"
	EventCheckResult   EventType = "check_result"
	EventCycleFinished EventType = "cycle_finished"
	EventChatChanged   EventType = "chat_changed"
	EventChatRemoved   EventType = "chat_removed"
)

// Event is one feed message. It never carries credentials.
type Event struct {
	Type    EventType      `json:"type"`
	Time    time.Time      `json:"time"`
	CycleID string         `json:"cycle_id,omitempty"`
	ChatID  domain.ChatID  `json:"chat_id,omitempty"`
	Course  string         `json:"course,omitempty"`
	Outcome domain.Outcome `json:"outcome,omitempty"`
	Slot    string         `json:"slot,omitempty"`
	Detail  string         `json:"detail,omitempty"`
}

// Publisher accepts events. The scheduler depends on this, not on Hub.
type Publisher interface {
	Publish(Event)
}

const (
	subscriberBuffer = 64
	backlogSize      = 32
)

type subscriber struct {
	ch      chan Event
	dropped int
}

// Hub fans events out to subscribers. Slow subscribers lose events rather
// than block the publisher. New subscribers first receive the most recent
// events.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	recent *backlog
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]*subscriber),
		recent: newBacklog(backlogSize),
	}
}

// Subscribe registers a subscriber under id and returns its channel, primed
// with the backlog. A subscriber already registered under id is replaced and
// its channel closed.
func (h *Hub) Subscribe(id string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.subs[id]; ok {
		close(existing.ch)
	}
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	for _, e := range h.recent.snapshot() {
		sub.ch <- e
	}
	h.subs[id] = sub
	slog.Info("Feed subscriber registered", "subscriber_id", id)
	return sub.ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(h.subs, id)
	slog.Info("Feed subscriber unregistered", "subscriber_id", id, "dropped", sub.dropped)
}

// Publish delivers e to every subscriber without blocking.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent.push(e)
	for _, sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
