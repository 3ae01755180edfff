// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/slotwatch/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	BotToken    string
	AdminChatID domain.ChatID

	Owner OwnerConfig

	PortalBaseURL string
	PortalSlots   []domain.Slot
	PortalTimeout time.Duration
	PortalMock    bool

	TelegramAPIURL      string
	TelegramPollTimeout time.Duration
	TelegramSendRate    float64

	CheckInterval    time.Duration
	PollEvery        time.Duration
	IdleEvery        time.Duration
	CheckConcurrency int

	SelfPingURL   string
	SelfPingEvery time.Duration

	Port             string
	GRPCHealthPort   string
	AdminToken       string
	AllowedOrigin    string
	HistoryDBPath    string
	HistoryRetention time.Duration

	LogFormat string
	LogLevel  string
}

// OwnerConfig pre-seeds one chat at startup for single-tenant deployments.
type OwnerConfig struct {
	ChatID       domain.ChatID
	Username     string
	Password     string
	WatchCourses []string
}

// Enabled reports whether an owner chat should be pre-seeded.
func (o OwnerConfig) Enabled() bool {
	return o.ChatID != ""
}

const defaultSlots = "O=15,P=16,Q=17,R=18,S=19,T=20"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	slots, err := domain.ParseSlots(getEnv("PORTAL_SLOTS", defaultSlots))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: PORTAL_SLOTS: %w", err)
	}

	cfg := &Config{
		BotToken:    strings.TrimSpace(getEnv("BOT_TOKEN", "")),
		AdminChatID: domain.ChatID(strings.TrimSpace(getEnv("ADMIN_CHAT_ID", ""))),
		Owner: OwnerConfig{
			ChatID:       domain.ChatID(strings.TrimSpace(getEnv("OWNER_CHAT_ID", ""))),
			Username:     getEnv("PORTAL_USERNAME", ""),
			Password:     getEnv("PORTAL_PASSWORD", ""),
			WatchCourses: domain.ParseCourseCodes(getEnv("WATCH_COURSES", "")),
		},

		PortalBaseURL: getEnv("PORTAL_BASE_URL", "https://arms.sse.saveetha.com"),
		PortalSlots:   slots,
		PortalTimeout: getEnvDuration("PORTAL_TIMEOUT", 20*time.Second),
		PortalMock:    getEnvBool("PORTAL_MOCK", false),

		TelegramAPIURL:      getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		TelegramPollTimeout: getEnvDuration("TELEGRAM_POLL_TIMEOUT", 0),
		TelegramSendRate:    getEnvFloat("TELEGRAM_SEND_RATE", 20),

		CheckInterval:    getEnvDuration("CHECK_INTERVAL", 15*time.Minute),
		PollEvery:        getEnvDuration("POLL_EVERY", 3*time.Second),
		IdleEvery:        getEnvDuration("IDLE_EVERY", 5*time.Second),
		CheckConcurrency: getEnvInt("CHECK_CONCURRENCY", 4),

		SelfPingURL:   getEnv("SELF_PING_URL", ""),
		SelfPingEvery: getEnvDuration("SELF_PING_EVERY", 10*time.Minute),

		Port:             getEnv("PORT", "8080"),
		GRPCHealthPort:   getEnv("GRPC_HEALTH_PORT", ""),
		AdminToken:       getEnv("ADMIN_TOKEN", ""),
		AllowedOrigin:    getEnv("FEED_ALLOWED_ORIGIN", "*"),
		HistoryDBPath:    getEnv("HISTORY_DB_PATH", ":memory:"),
		HistoryRetention: getEnvDuration("HISTORY_RETENTION", 7*24*time.Hour),

		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadPortal reads only the portal settings and the owner credentials. It
// backs one-shot commands that never talk to Telegram.
func LoadPortal() (*Config, error) {
	slots, err := domain.ParseSlots(getEnv("PORTAL_SLOTS", defaultSlots))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: PORTAL_SLOTS: %w", err)
	}
	cfg := &Config{
		Owner: OwnerConfig{
			Username: getEnv("PORTAL_USERNAME", ""),
			Password: getEnv("PORTAL_PASSWORD", ""),
		},
		PortalBaseURL: getEnv("PORTAL_BASE_URL", "https://arms.sse.saveetha.com"),
		PortalSlots:   slots,
		PortalTimeout: getEnvDuration("PORTAL_TIMEOUT", 20*time.Second),
		PortalMock:    getEnvBool("PORTAL_MOCK", false),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if _, err := url.ParseRequestURI(cfg.PortalBaseURL); err != nil {
		return nil, fmt.Errorf("invalid configuration: PORTAL_BASE_URL: %w", err)
	}
	if cfg.PortalTimeout <= 0 {
		return nil, errors.New("invalid configuration: PORTAL_TIMEOUT must be > 0")
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if _, err := url.ParseRequestURI(c.PortalBaseURL); err != nil {
		return fmt.Errorf("PORTAL_BASE_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.TelegramAPIURL); err != nil {
		return fmt.Errorf("TELEGRAM_API_URL: %w", err)
	}
	if c.CheckInterval <= 0 {
		return errors.New("CHECK_INTERVAL must be > 0")
	}
	if c.PollEvery <= 0 || c.PollEvery > c.CheckInterval {
		return errors.New("POLL_EVERY must be > 0 and no longer than CHECK_INTERVAL")
	}
	if c.IdleEvery <= 0 {
		return errors.New("IDLE_EVERY must be > 0")
	}
	if c.CheckConcurrency <= 0 {
		return errors.New("CHECK_CONCURRENCY must be > 0")
	}
	if c.PortalTimeout <= 0 {
		return errors.New("PORTAL_TIMEOUT must be > 0")
	}
	if c.TelegramPollTimeout < 0 {
		return errors.New("TELEGRAM_POLL_TIMEOUT must be >= 0")
	}
	if c.SelfPingURL != "" && c.SelfPingEvery <= 0 {
		return errors.New("SELF_PING_EVERY must be > 0 when SELF_PING_URL is set")
	}
	if c.HistoryDBPath == "" {
		return errors.New("HISTORY_DB_PATH cannot be empty")
	}
	if c.HistoryRetention <= 0 {
		return errors.New("HISTORY_RETENTION must be > 0")
	}
	if (c.Owner.Username == "") != (c.Owner.Password == "") {
		return errors.New("PORTAL_USERNAME and PORTAL_PASSWORD must be set together")
	}
	if len(c.Owner.WatchCourses) > 0 && c.Owner.ChatID == "" {
		return errors.New("WATCH_COURSES requires OWNER_CHAT_ID")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// OwnerSession returns the session to pre-seed for the owner chat. Monitoring
// is only enabled when credentials and a watch list are both configured.
func (c *Config) OwnerSession() *domain.ChatSession {
	s := domain.NewChatSession(c.Owner.ChatID)
	s.Credentials = domain.Credentials{Username: c.Owner.Username, Password: c.Owner.Password}
	s.WatchList = c.Owner.WatchCourses
	s.MonitoringEnabled = s.HasCredentials() && len(s.WatchList) > 0
	if !s.MonitoringEnabled && s.HasCredentials() {
		s.Step = domain.StepAwaitingCourse
	}
	return s
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("15m") or bare seconds ("900").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
