// Package monitor runs the check cycle: drain chat commands, check due
// sessions against the portal, report results, then wait.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/slotwatch/internal/conversation"
	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/feed"
	"github.com/ashureev/slotwatch/internal/health"
	"github.com/ashureev/slotwatch/internal/portal"
	"github.com/ashureev/slotwatch/internal/registry"
	"github.com/ashureev/slotwatch/internal/store"
)

// Transport is the chat side of the scheduler.
type Transport interface {
	GetUpdates(ctx context.Context, since int64) ([]domain.Update, error)
	SendMessage(ctx context.Context, chatID domain.ChatID, text string) error
}

// Config holds scheduler timing.
type Config struct {
	Interval    time.Duration
	PollEvery   time.Duration
	IdleEvery   time.Duration
	Concurrency int
	AdminChatID domain.ChatID
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.PollEvery <= 0 {
		c.PollEvery = 3 * time.Second
	}
	if c.IdleEvery <= 0 {
		c.IdleEvery = 5 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return c
}

// State is what the scheduler is doing right now.
type State string

const (
	StateStarting State = "starting"
	StateIdle     State = "idle"
	StateChecking State = "checking"
	StateWaiting  State = "waiting"
	StateStopped  State = "stopped"
)

// Status is a snapshot for the operator API.
type Status struct {
	State       State     `json:"state"`
	Cycles      int64     `json:"cycles"`
	LastCycleID string    `json:"last_cycle_id,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
	Recovered   int64     `json:"recovered_panics"`
}

// maxDrainRounds bounds one drain so a flood of updates cannot starve checks.
const maxDrainRounds = 50

// Scheduler owns the monitoring loop. Run must be called from one goroutine.
type Scheduler struct {
	cfg       Config
	registry  *registry.Registry
	conv      *conversation.Service
	transport Transport
	portal    portal.Client
	history   store.Repository
	feed      feed.Publisher
	health    *health.Monitor
	logger    *slog.Logger
	now       func() time.Time

	// due is only touched by the Run goroutine.
	due map[domain.ChatID]time.Time

	mu     sync.RWMutex
	status Status
}

// Option configures optional scheduler collaborators.
type Option func(*Scheduler)

// WithHistory records every check outcome in repo.
func WithHistory(repo store.Repository) Option {
	return func(s *Scheduler) { s.history = repo }
}

// WithFeed publishes scheduler events to p.
func WithFeed(p feed.Publisher) Option {
	return func(s *Scheduler) { s.feed = p }
}

// WithHealth reports component health to m.
func WithHealth(m *health.Monitor) Option {
	return func(s *Scheduler) { s.health = m }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler.
func New(cfg Config, reg *registry.Registry, transport Transport, client portal.Client, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg.withDefaults(),
		registry:  reg,
		transport: transport,
		portal:    client,
		logger:    slog.Default(),
		now:       time.Now,
		due:       make(map[domain.ChatID]time.Time),
		status:    Status{State: StateStarting},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.conv = conversation.NewService(reg, s.logger)
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run loops until ctx is canceled. Panics inside a step are recovered and
// reported; the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		"interval", s.cfg.Interval,
		"poll_every", s.cfg.PollEvery,
		"idle_every", s.cfg.IdleEvery,
		"concurrency", s.cfg.Concurrency,
	)
	defer s.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			s.logger.Info("Scheduler stopped")
			return nil
		}
		s.safeStep(ctx)
	}
}

func (s *Scheduler) safeStep(ctx context.Context) {
	cycleID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler step panicked",
				"cycle_id", cycleID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			s.mu.Lock()
			s.status.Recovered++
			s.mu.Unlock()
			s.reportHealth(health.Scheduler, health.Degraded, fmt.Sprintf("recovered: %v", r))
			if s.cfg.AdminChatID != "" {
				s.send(ctx, domain.Notice{ChatID: s.cfg.AdminChatID, Text: msgSchedulerError(cycleID, r)})
			}
			// Back off briefly so a persistent fault cannot spin.
			s.sleep(ctx, s.cfg.IdleEvery)
		}
	}()
	s.step(ctx, cycleID)
}

func (s *Scheduler) step(ctx context.Context, cycleID string) {
	s.drain(ctx)
	if ctx.Err() != nil {
		return
	}

	eligible := s.eligible()
	if len(eligible) == 0 {
		s.setState(StateIdle)
		s.reportHealth(health.Scheduler, health.Healthy, "idle")
		s.sleep(ctx, s.cfg.IdleEvery)
		return
	}

	now := s.now()
	var due []*domain.ChatSession
	for _, session := range eligible {
		if at, ok := s.due[session.ChatID]; !ok || !now.Before(at) {
			due = append(due, session)
		}
	}

	if len(due) > 0 {
		s.runCycle(ctx, cycleID, now, due)
	}
	s.wait(ctx)
}

// eligible returns the sessions the scheduler may check and forgets the due
// time of every session that dropped out, so it is due at once when it
// becomes eligible again.
func (s *Scheduler) eligible() []*domain.ChatSession {
	sessions := s.registry.Eligible()
	keep := make(map[domain.ChatID]struct{}, len(sessions))
	for _, session := range sessions {
		keep[session.ChatID] = struct{}{}
	}
	for id := range s.due {
		if _, ok := keep[id]; !ok {
			delete(s.due, id)
		}
	}
	return sessions
}

// drain applies every pending chat update. Updates at or below the cursor are
// skipped, so a redelivered update is never applied twice.
func (s *Scheduler) drain(ctx context.Context) {
	for round := 0; round < maxDrainRounds; round++ {
		updates, err := s.transport.GetUpdates(ctx, s.registry.Cursor())
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Failed to fetch updates", "error", err)
				s.reportHealth(health.Telegram, health.Degraded, err.Error())
			}
			return
		}
		s.reportHealth(health.Telegram, health.Healthy, "")
		if len(updates) == 0 {
			return
		}

		for _, u := range updates {
			if !s.registry.AdvanceCursor(u.ID) {
				s.logger.Debug("Skipping consumed update", "update_id", u.ID)
				continue
			}
			if u.ChatID == "" {
				continue
			}
			s.handle(ctx, u)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, u domain.Update) {
	out := s.conv.Handle(u)

	switch {
	case out.Deleted:
		delete(s.due, out.ChatID)
		s.publish(feed.Event{Type: feed.EventChatRemoved, ChatID: out.ChatID})
		if s.history != nil {
			if _, err := s.history.DeleteChat(ctx, out.ChatID); err != nil {
				s.logger.Warn("Failed to purge chat history", "chat_id", out.ChatID, "error", err)
			}
		}
	case out.Rearm:
		delete(s.due, out.ChatID)
		s.publish(feed.Event{Type: feed.EventChatChanged, ChatID: out.ChatID})
	}

	for _, n := range out.Notices {
		s.send(ctx, n)
	}
}

// wait blocks until some eligible session is due, draining commands every
// PollEvery. It returns early when no session is eligible any more or ctx
// is canceled.
func (s *Scheduler) wait(ctx context.Context) {
	s.setState(StateWaiting)
	ticker := time.NewTicker(s.cfg.PollEvery)
	defer ticker.Stop()

	for {
		eligible := s.eligible()
		if len(eligible) == 0 {
			s.logger.Info("No eligible sessions, abandoning wait")
			return
		}

		now := s.now()
		next := now.Add(s.cfg.Interval)
		for _, session := range eligible {
			at, ok := s.due[session.ChatID]
			if !ok || !now.Before(at) {
				return
			}
			if at.Before(next) {
				next = at
			}
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-ticker.C:
			timer.Stop()
			s.drain(ctx)
		}
	}
}

type checkResult struct {
	session *domain.ChatSession
	report  portal.Report
	err     error
}

func (s *Scheduler) runCycle(ctx context.Context, cycleID string, start time.Time, due []*domain.ChatSession) {
	s.setState(StateChecking)
	logger := s.logger.With("cycle_id", cycleID)
	logger.Info("Check cycle started", "sessions", len(due))
	s.publish(feed.Event{Type: feed.EventCycleStarted, CycleID: cycleID, Time: start})

	results := make([]checkResult, len(due))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, session := range due {
		i, session := i, session
		g.Go(func() error {
			results[i] = s.check(ctx, session)
			return nil
		})
	}
	_ = g.Wait()

	var (
		records  []domain.CheckRecord
		failures int
	)
	for _, res := range results {
		if res.err != nil && ctx.Err() != nil {
			// Shutting down; the check did not really fail.
			continue
		}
		s.due[res.session.ChatID] = start.Add(s.cfg.Interval)
		recs := s.apply(ctx, cycleID, res)
		records = append(records, recs...)
		if res.err != nil {
			failures++
		}
	}

	s.recordHistory(ctx, records)

	switch {
	case failures == 0:
		s.reportHealth(health.Portal, health.Healthy, "")
	case failures == len(results):
		s.reportHealth(health.Portal, health.Unhealthy, fmt.Sprintf("%d of %d checks failed", failures, len(results)))
	default:
		s.reportHealth(health.Portal, health.Degraded, fmt.Sprintf("%d of %d checks failed", failures, len(results)))
	}
	s.reportHealth(health.Scheduler, health.Healthy, "")

	s.mu.Lock()
	s.status.Cycles++
	s.status.LastCycleID = cycleID
	s.status.LastCycleAt = start
	s.mu.Unlock()

	logger.Info("Check cycle finished", "sessions", len(due), "failures", failures, "took", s.now().Sub(start))
	s.publish(feed.Event{Type: feed.EventCycleFinished, CycleID: cycleID})
}

// check runs one portal check. A panic inside the client becomes an error
// for that session only.
func (s *Scheduler) check(ctx context.Context, session *domain.ChatSession) (res checkResult) {
	res.session = session
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Portal check panicked", "chat_id", session.ChatID, "panic", r)
			res.err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	res.report, res.err = s.portal.CheckCourses(ctx, session.Credentials, session.WatchList)
	return res
}

// apply folds one check result into the registry and sends the notices.
// Commands are not drained while checks run, so the stored session still
// matches the one that was checked.
func (s *Scheduler) apply(ctx context.Context, cycleID string, res checkResult) []domain.CheckRecord {
	chatID := res.session.ChatID
	checkedAt := s.now()
	logger := s.logger.With("cycle_id", cycleID, "chat_id", chatID)

	var (
		notices []string
		records []domain.CheckRecord
	)
	record := func(course string, outcome domain.Outcome, slot, detail string) {
		records = append(records, domain.CheckRecord{
			CycleID:   cycleID,
			ChatID:    chatID,
			Course:    course,
			Outcome:   outcome,
			Slot:      slot,
			Detail:    detail,
			CheckedAt: checkedAt,
		})
	}

	ok := s.registry.Update(chatID, func(session *domain.ChatSession) {
		session.LastResultNotice = ""
		emit := func(text string) {
			// Identical notices within one cycle are sent once.
			if text == session.LastResultNotice {
				return
			}
			session.LastResultNotice = text
			notices = append(notices, text)
		}

		if res.err != nil {
			text, outcome := failureNotice(res.err)
			logger.Warn("Portal check failed", "outcome", string(outcome), "error", res.err)
			emit(text)
			for _, course := range res.session.WatchList {
				record(course, outcome, "", res.err.Error())
			}
			return
		}

		var found []string
		for _, course := range res.session.WatchList {
			slot, hit := res.report.Slot(course)
			if !hit {
				emit(msgNotFound(course))
				record(course, domain.OutcomeNotFound, "", "")
				continue
			}
			session.RemoveCourse(course)
			found = append(found, course)
			emit(msgFound(course, slot))
			record(course, domain.OutcomeFound, slot.Label, "")
			logger.Info("Course found", "course", course, "slot", slot.Label)
		}

		if len(found) > 0 && len(session.WatchList) == 0 {
			// Nothing left to watch; wait for the next course.
			session.Step = domain.StepAwaitingCourse
			emit(msgComplete(found))
		}
	})
	if !ok {
		logger.Debug("Session vanished before results were applied")
		return nil
	}

	for _, text := range notices {
		s.send(ctx, domain.Notice{ChatID: chatID, Text: text})
	}
	for _, r := range records {
		s.publish(feed.Event{
			Type:    feed.EventCheckResult,
			Time:    r.CheckedAt,
			CycleID: r.CycleID,
			ChatID:  r.ChatID,
			Course:  r.Course,
			Outcome: r.Outcome,
			Slot:    r.Slot,
			Detail:  r.Detail,
		})
	}
	return records
}

func (s *Scheduler) recordHistory(ctx context.Context, records []domain.CheckRecord) {
	if s.history == nil || len(records) == 0 {
		return
	}
	if err := s.history.RecordChecks(ctx, records); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("Failed to record check history", "error", err)
			s.reportHealth(health.History, health.Degraded, err.Error())
		}
		return
	}
	s.reportHealth(health.History, health.Healthy, "")
}

// send delivers a notice. Delivery failures are logged, never fatal.
func (s *Scheduler) send(ctx context.Context, n domain.Notice) {
	if err := s.transport.SendMessage(ctx, n.ChatID, n.Text); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Failed to send notice", "chat_id", n.ChatID, "error", err)
			s.reportHealth(health.Telegram, health.Degraded, err.Error())
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = st
}

func (s *Scheduler) reportHealth(component string, status health.Status, message string) {
	if s.health != nil {
		s.health.Update(component, status, message)
	}
}

func (s *Scheduler) publish(e feed.Event) {
	if s.feed != nil {
		s.feed.Publish(e)
	}
}
