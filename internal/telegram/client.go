// Package telegram adapts the Bot API SDK to the scheduler's polling and
// plain text messaging needs.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/ashureev/slotwatch/internal/domain"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// Client talks to the Bot API.
type Client struct {
	bot         *tgbotapi.BotAPI
	pollTimeout time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

type settings struct {
	apiURL      string
	pollTimeout time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*settings)

// WithAPIURL overrides the Bot API root, mainly for tests.
func WithAPIURL(u string) Option {
	return func(s *settings) {
		s.apiURL = strings.TrimRight(u, "/")
	}
}

// WithPollTimeout sets the getUpdates long-poll timeout. Zero means short polling.
func WithPollTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.pollTimeout = d
	}
}

// WithSendRate caps outbound messages per second. Zero or less disables the cap.
func WithSendRate(perSecond float64) Option {
	return func(s *settings) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewClient creates a Bot API client for token. It calls getMe once, so a
// revoked or mistyped token fails here.
func NewClient(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: bot token must not be empty")
	}

	s := settings{
		apiURL:  DefaultAPIURL,
		limiter: rate.NewLimiter(rate.Limit(20), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	// The HTTP timeout must outlast a long poll.
	hc := &http.Client{Timeout: max(30*time.Second, s.pollTimeout+10*time.Second)}
	bot, err := tgbotapi.NewBotAPIWithClient(token, s.apiURL+"/bot%s/%s", hc)
	if err != nil {
		return nil, wrapError("getMe", err)
	}

	logger := s.logger.With("component", "telegram")
	logger.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &Client{
		bot:         bot,
		pollTimeout: s.pollTimeout,
		limiter:     s.limiter,
		logger:      logger,
	}, nil
}

// GetUpdates returns updates with ids strictly greater than since, in
// ascending order. Updates without a message carry an empty ChatID; callers
// still advance their cursor past them.
func (c *Client) GetUpdates(ctx context.Context, since int64) ([]domain.Update, error) {
	cfg := tgbotapi.NewUpdate(int(since + 1))
	cfg.Timeout = int(c.pollTimeout / time.Second)
	cfg.AllowedUpdates = []string{"message"}

	raw, err := withContext(ctx, func() ([]tgbotapi.Update, error) {
		return c.bot.GetUpdates(cfg)
	})
	if err != nil {
		return nil, wrapError("getUpdates", err)
	}

	updates := make([]domain.Update, 0, len(raw))
	for _, r := range raw {
		u := domain.Update{ID: int64(r.UpdateID)}
		if r.Message != nil && r.Message.Chat != nil {
			u.ChatID = domain.ChatID(strconv.FormatInt(r.Message.Chat.ID, 10))
			u.Text = r.Message.Text
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// SendMessage delivers text to chatID, waiting for the send rate limiter.
func (c *Client) SendMessage(ctx context.Context, chatID domain.ChatID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(string(chatID), 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(string(chatID), text)
	}

	if _, err := withContext(ctx, func() (tgbotapi.Message, error) {
		return c.bot.Send(msg)
	}); err != nil {
		return wrapError("sendMessage", err)
	}
	c.logger.Debug("Message sent", "chat_id", chatID)
	return nil
}

// withContext runs fn and returns early when ctx ends. The SDK call keeps
// running until its HTTP timeout; its result is dropped.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}

func wrapError(method string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{Method: method, StatusCode: tgErr.Code, Description: tgErr.Message}
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}
