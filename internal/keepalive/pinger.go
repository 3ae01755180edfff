// Package keepalive pings an external URL on a fixed interval so free-tier
// hosts do not put the process to sleep.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const pingTimeout = 10 * time.Second

// Pinger issues GET requests against a URL.
type Pinger struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewPinger creates a pinger for url. A nil client gets a default with a
// short timeout.
func NewPinger(url string, client *http.Client, logger *slog.Logger) *Pinger {
	if client == nil {
		client = &http.Client{Timeout: pingTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pinger{url: url, client: client, logger: logger.With("component", "keepalive")}
}

// Ping performs one request. Any 2xx or 3xx answer counts as success.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.url, err)
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))

	if res.StatusCode >= 400 {
		return fmt.Errorf("ping %s: status %d", p.url, res.StatusCode)
	}
	return nil
}

// Start runs Ping every interval in a background goroutine until ctx ends.
// Failures are logged and never stop the loop.
func (p *Pinger) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		p.logger.Info("Self-ping worker started", "url", p.url, "interval", interval)

		for {
			select {
			case <-ticker.C:
				if err := p.Ping(ctx); err != nil && ctx.Err() == nil {
					p.logger.Warn("Self-ping failed", "error", err)
				}
			case <-ctx.Done():
				p.logger.Info("Self-ping worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
