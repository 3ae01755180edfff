package domain

import "time"

// Outcome is the result of one course within a check.
type Outcome string

const (
	OutcomeFound           Outcome = "found"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeAuthRejected    Outcome = "auth_rejected"
	OutcomePageUnreachable Outcome = "page_unreachable"
	OutcomeError           Outcome = "error"
)

// CheckRecord is one course outcome from one check cycle. Records are kept
// for diagnostics only; they never feed back into chat sessions.
type CheckRecord struct {
	ID        int64     `json:"id"`
	CycleID   string    `json:"cycle_id"`
	ChatID    ChatID    `json:"chat_id"`
	Course    string    `json:"course"`
	Outcome   Outcome   `json:"outcome"`
	Slot      string    `json:"slot,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
