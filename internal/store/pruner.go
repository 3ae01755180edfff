package store

import (
	"context"
	"log/slog"
	"time"
)

const pruneInterval = time.Hour

// StartPruner runs a background goroutine that deletes history older than
// retention once an hour.
func StartPruner(ctx context.Context, repo Repository, retention time.Duration) {
	startPruner(ctx, repo, retention, pruneInterval)
}

func startPruner(ctx context.Context, repo Repository, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("History pruner started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				prune(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("History pruner shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func prune(ctx context.Context, repo Repository, retention time.Duration) {
	cutoff := time.Now().Add(-retention).Unix()
	deleted, err := repo.PruneBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("History pruner failed", "error", err)
		}
		return
	}
	if deleted > 0 {
		slog.Info("History pruned", "deleted", deleted)
	}
}
