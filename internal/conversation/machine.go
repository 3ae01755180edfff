// Package conversation turns inbound chat messages into chat session changes.
package conversation

import (
	"strings"

	"github.com/ashureev/slotwatch/internal/domain"
)

// Input is the kind of an inbound message.
type Input int

const (
	// InputText is any message that is not a recognised command.
	InputText Input = iota
	// InputStart is /start.
	InputStart
	// InputStop is /stop.
	InputStop
	// InputLogout is /logout.
	InputLogout
	// InputEmpty is /empty.
	InputEmpty
)

var commands = map[string]Input{
	"/start":  InputStart,
	"/stop":   InputStop,
	"/logout": InputLogout,
	"/empty":  InputEmpty,
}

// Result is the outcome of applying one message to a session.
type Result struct {
	// Session is the updated session. It is nil when Deleted is set.
	Session *domain.ChatSession
	// Deleted reports that the session must be removed from the registry.
	Deleted bool
	// Rearm reports that the watch list or monitoring switch changed in a way
	// that should trigger a prompt check.
	Rearm bool
	// Notices are the replies to send, in order.
	Notices []string
}

type transition func(s *domain.ChatSession, text string) Result

// commandTransitions apply regardless of the onboarding step.
var commandTransitions = map[Input]transition{
	InputStart:  start,
	InputStop:   stop,
	InputLogout: logout,
	InputEmpty:  empty,
}

// textTransitions handle free text per onboarding step. Every Step has an
// entry.
var textTransitions = map[domain.Step]transition{
	domain.StepNone:             idleText,
	domain.StepAwaitingUsername: takeUsername,
	domain.StepAwaitingPassword: takePassword,
	domain.StepAwaitingCourse:   takeCourses,
}

// Classify trims raw and reports its input kind. A "@botname" suffix on a
// command is ignored.
func Classify(raw string) (Input, string) {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "/") {
		return InputText, text
	}

	token, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	if in, ok := commands[strings.ToLower(token)]; ok {
		return in, text
	}
	return InputText, text
}

// Apply applies one inbound message to s and returns the new state. s itself
// is never modified. Apply never fails; unrecognised combinations are ignored.
func Apply(s *domain.ChatSession, raw string) Result {
	next := s.Clone()
	in, text := Classify(raw)

	if in == InputText {
		if text == "" {
			return Result{Session: next}
		}
		fn, ok := textTransitions[next.Step]
		if !ok {
			return Result{Session: next}
		}
		return fn(next, text)
	}
	return commandTransitions[in](next, text)
}

func start(s *domain.ChatSession, _ string) Result {
	wasEligible := s.Eligible()
	s.MonitoringEnabled = true

	switch {
	case s.Credentials.Username == "":
		s.Step = domain.StepAwaitingUsername
		return Result{Session: s, Notices: []string{msgStarted + " " + msgAskUsername}}
	case s.Credentials.Password == "":
		s.Step = domain.StepAwaitingPassword
		return Result{Session: s, Notices: []string{msgStarted + " " + msgAskPassword}}
	case len(s.WatchList) == 0:
		s.Step = domain.StepAwaitingCourse
		return Result{Session: s, Notices: []string{msgStarted + " " + msgAskCourse}}
	}

	// An already running watch keeps its schedule; only a resumed one is
	// checked at once.
	s.Step = domain.StepNone
	return Result{
		Session: s,
		Rearm:   !wasEligible,
		Notices: []string{msgStarted + "\n" + msgMonitoring(s.WatchList)},
	}
}

func stop(s *domain.ChatSession, _ string) Result {
	s.MonitoringEnabled = false
	s.Step = domain.StepNone
	return Result{Session: s, Notices: []string{msgStopped}}
}

func logout(_ *domain.ChatSession, _ string) Result {
	return Result{Deleted: true, Notices: []string{msgLoggedOut}}
}

func empty(s *domain.ChatSession, _ string) Result {
	return Result{Session: s, Notices: []string{msgCleared}}
}

func idleText(s *domain.ChatSession, _ string) Result {
	if s.HasCredentials() && len(s.WatchList) > 0 {
		return Result{Session: s}
	}
	return Result{Session: s, Notices: []string{msgHint}}
}

func takeUsername(s *domain.ChatSession, text string) Result {
	s.Credentials.Username = text
	s.Step = domain.StepAwaitingPassword
	return Result{Session: s, Notices: []string{msgAskPassword}}
}

func takePassword(s *domain.ChatSession, text string) Result {
	s.Credentials.Password = text
	s.Step = domain.StepAwaitingCourse
	return Result{Session: s, Notices: []string{msgAskCourse}}
}

func takeCourses(s *domain.ChatSession, text string) Result {
	codes := domain.ParseCourseCodes(text)
	if len(codes) == 0 {
		return Result{Session: s, Notices: []string{msgNoCourse + " " + msgAskCourse}}
	}

	s.WatchList = codes
	s.Step = domain.StepNone
	s.MonitoringEnabled = true
	return Result{Session: s, Rearm: true, Notices: []string{msgMonitoring(codes)}}
}
