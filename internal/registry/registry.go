// Package registry holds the in-memory chat session registry and the
// process-wide command cursor.
package registry

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/ashureev/slotwatch/internal/domain"
)

// Registry maps chat IDs to their sessions. Sessions handed out are copies;
// changes go back through Put or Update.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ChatID]*domain.ChatSession
	cursor   int64
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Sessions   int   `json:"sessions"`
	Monitoring int   `json:"monitoring"`
	Eligible   int   `json:"eligible"`
	Cursor     int64 `json:"cursor"`
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[domain.ChatID]*domain.ChatSession),
	}
}

// GetOrCreate returns the session for chatID, creating an empty one on first
// sight.
func (r *Registry) GetOrCreate(chatID domain.ChatID) *domain.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[chatID]
	if !ok {
		s = domain.NewChatSession(chatID)
		r.sessions[chatID] = s
		slog.Debug("Chat session created", "chat_id", chatID)
	}
	return s.Clone()
}

// Get returns the session for chatID.
func (r *Registry) Get(chatID domain.ChatID) (*domain.ChatSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[chatID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Put stores s, replacing any previous session for the same chat.
func (r *Registry) Put(s *domain.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ChatID] = s.Clone()
}

// Delete removes the session for chatID entirely. It returns false if there
// was nothing to delete.
func (r *Registry) Delete(chatID domain.ChatID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[chatID]; !ok {
		return false
	}
	delete(r.sessions, chatID)
	slog.Debug("Chat session deleted", "chat_id", chatID)
	return true
}

// Update applies fn to the stored session under the registry lock. It returns
// false if the session no longer exists.
func (r *Registry) Update(chatID domain.ChatID, fn func(*domain.ChatSession)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[chatID]
	if !ok {
		return false
	}
	fn(s)
	return true
}

// Eligible returns copies of every session the scheduler should check,
// ordered by chat ID.
func (r *Registry) Eligible() []*domain.ChatSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.ChatSession
	for _, s := range r.sessions {
		if s.Eligible() {
			out = append(out, s.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.ChatSession) int {
		switch {
		case a.ChatID < b.ChatID:
			return -1
		case a.ChatID > b.ChatID:
			return 1
		}
		return 0
	})
	return out
}

// Stats summarises the registry.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{Sessions: len(r.sessions), Cursor: r.cursor}
	for _, s := range r.sessions {
		if s.MonitoringEnabled {
			st.Monitoring++
		}
		if s.Eligible() {
			st.Eligible++
		}
	}
	return st
}

// Cursor returns the highest update ID already consumed.
func (r *Registry) Cursor() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

// AdvanceCursor moves the cursor to id. It returns false, leaving the cursor
// untouched, when id was already consumed.
func (r *Registry) AdvanceCursor(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id <= r.cursor {
		return false
	}
	r.cursor = id
	return true
}
