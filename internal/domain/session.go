// Package domain contains core domain types for the slotwatch bot.
package domain

import "slices"

// ChatID identifies a chat on the transport. It is the registry key.
type ChatID string

// Credentials holds a portal username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Complete returns true if both username and password are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// Step is the onboarding position of a chat session.
type Step int

const (
	// StepNone means no free-text input is expected.
	StepNone Step = iota
	// StepAwaitingUsername expects the portal username next.
	StepAwaitingUsername
	// StepAwaitingPassword expects the portal password next.
	StepAwaitingPassword
	// StepAwaitingCourse expects one or more course codes next.
	StepAwaitingCourse
)

func (s Step) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepAwaitingUsername:
		return "awaiting_username"
	case StepAwaitingPassword:
		return "awaiting_password"
	case StepAwaitingCourse:
		return "awaiting_course"
	default:
		return "unknown"
	}
}

// ChatSession holds onboarding and monitoring state for one chat.
type ChatSession struct {
	ChatID            ChatID
	Credentials       Credentials
	WatchList         []string
	MonitoringEnabled bool
	Step              Step

	// LastResultNotice is the last result notice sent in the current cycle.
	// It is reset at the start of every check and never outlives the process.
	LastResultNotice string
}

// NewChatSession returns an empty session for chatID.
func NewChatSession(chatID ChatID) *ChatSession {
	return &ChatSession{ChatID: chatID}
}

// HasCredentials returns true if a complete credential pair is stored.
func (s *ChatSession) HasCredentials() bool {
	return s.Credentials.Complete()
}

// Eligible returns true if the scheduler should check this session.
func (s *ChatSession) Eligible() bool {
	return s.MonitoringEnabled && s.HasCredentials() && len(s.WatchList) > 0
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	c := *s
	c.WatchList = slices.Clone(s.WatchList)
	return &c
}

// RemoveCourse drops code from the watch list. It returns false if the
// course was not being watched.
func (s *ChatSession) RemoveCourse(code string) bool {
	i := slices.Index(s.WatchList, code)
	if i < 0 {
		return false
	}
	s.WatchList = slices.Delete(s.WatchList, i, i+1)
	return true
}

// Update is one inbound chat message.
type Update struct {
	ID     int64
	ChatID ChatID
	Text   string
}

// Notice is one outbound chat message.
type Notice struct {
	ChatID ChatID
	Text   string
}
