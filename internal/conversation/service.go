package conversation

import (
	"log/slog"

	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/registry"
)

// Service applies inbound messages to the session registry.
type Service struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// Outcome is what the caller needs to act on after one message.
type Outcome struct {
	ChatID  domain.ChatID
	Deleted bool
	Rearm   bool
	Notices []domain.Notice
}

// NewService creates a conversation service over reg.
func NewService(reg *registry.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: reg,
		logger:   logger.With("component", "conversation"),
	}
}

// Handle applies one update. The session is created on first sight of a chat.
func (s *Service) Handle(u domain.Update) Outcome {
	session := s.registry.GetOrCreate(u.ChatID)
	before := session.Step

	res := Apply(session, u.Text)
	if res.Deleted {
		s.registry.Delete(u.ChatID)
		s.logger.Info("Chat logged out", "chat_id", u.ChatID)
	} else {
		s.registry.Put(res.Session)
		if res.Session.Step != before {
			s.logger.Debug("Onboarding step changed",
				"chat_id", u.ChatID,
				"from", before.String(),
				"to", res.Session.Step.String(),
			)
		}
	}

	out := Outcome{ChatID: u.ChatID, Deleted: res.Deleted, Rearm: res.Rearm}
	for _, text := range res.Notices {
		out.Notices = append(out.Notices, domain.Notice{ChatID: u.ChatID, Text: text})
	}
	return out
}
