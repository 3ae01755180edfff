package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashureev/slotwatch/internal/domain"
)

func TestPrunerRemovesExpiredRecords(t *testing.T) {
	s := newMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.RecordChecks(ctx, []domain.CheckRecord{
		{CycleID: "old", ChatID: "7", Course: "A", Outcome: domain.OutcomeNotFound, CheckedAt: time.Now().Add(-2 * time.Hour)},
		{CycleID: "new", ChatID: "7", Course: "A", Outcome: domain.OutcomeNotFound, CheckedAt: time.Now()},
	}))

	startPruner(ctx, s, time.Hour, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := s.RecentChecks(context.Background(), "7", 10)
		return err == nil && len(got) == 1 && got[0].CycleID == "new"
	}, 2*time.Second, 5*time.Millisecond)
}
