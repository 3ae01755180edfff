// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/slotwatch/internal/domain"
)

// Repository persists check history for diagnostics.
type Repository interface {
	// RecordChecks stores the outcomes of one check. ID is assigned by the store.
	RecordChecks(ctx context.Context, records []domain.CheckRecord) error

	// RecentChecks returns up to limit records for a chat, newest first.
	RecentChecks(ctx context.Context, chatID domain.ChatID, limit int) ([]domain.CheckRecord, error)

	// DeleteChat removes every record for a chat and returns how many were removed.
	DeleteChat(ctx context.Context, chatID domain.ChatID) (int64, error)

	// PruneBefore removes records older than cutoff.
	PruneBefore(ctx context.Context, cutoffUnix int64) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
