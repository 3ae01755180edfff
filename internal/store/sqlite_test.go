package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashureev/slotwatch/internal/domain"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecentChecks(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	require.NoError(t, s.RecordChecks(ctx, []domain.CheckRecord{
		{CycleID: "c1", ChatID: "7", Course: "ECA20", Outcome: domain.OutcomeNotFound, CheckedAt: base},
		{CycleID: "c1", ChatID: "8", Course: "EEE20", Outcome: domain.OutcomeAuthRejected, Detail: "login", CheckedAt: base},
	}))
	require.NoError(t, s.RecordChecks(ctx, []domain.CheckRecord{
		{CycleID: "c2", ChatID: "7", Course: "ECA20", Outcome: domain.OutcomeFound, Slot: "Q", CheckedAt: base.Add(time.Minute)},
	}))

	got, err := s.RecentChecks(ctx, "7", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c2", got[0].CycleID)
	require.Equal(t, domain.OutcomeFound, got[0].Outcome)
	require.Equal(t, "Q", got[0].Slot)
	require.True(t, got[0].CheckedAt.Equal(base.Add(time.Minute)))
	require.Equal(t, domain.OutcomeNotFound, got[1].Outcome)
	require.Empty(t, got[1].Slot)

	limited, err := s.RecentChecks(ctx, "7", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRecentChecksUnknownChat(t *testing.T) {
	s := newMemoryStore(t)
	got, err := s.RecentChecks(context.Background(), "nobody", 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestDeleteChat(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordChecks(ctx, []domain.CheckRecord{
		{CycleID: "c1", ChatID: "7", Course: "A", Outcome: domain.OutcomeNotFound, CheckedAt: now},
		{CycleID: "c1", ChatID: "7", Course: "B", Outcome: domain.OutcomeNotFound, CheckedAt: now},
		{CycleID: "c1", ChatID: "8", Course: "A", Outcome: domain.OutcomeNotFound, CheckedAt: now},
	}))

	n, err := s.DeleteChat(ctx, "7")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	other, err := s.RecentChecks(ctx, "8", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestPruneBefore(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordChecks(ctx, []domain.CheckRecord{
		{CycleID: "old", ChatID: "7", Course: "A", Outcome: domain.OutcomeNotFound, CheckedAt: now.Add(-48 * time.Hour)},
		{CycleID: "new", ChatID: "7", Course: "A", Outcome: domain.OutcomeNotFound, CheckedAt: now},
	}))

	n, err := s.PruneBefore(ctx, now.Add(-24*time.Hour).Unix())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.RecentChecks(ctx, "7", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "new", got[0].CycleID)
}

func TestFileBackedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.RecordChecks(context.Background(), []domain.CheckRecord{
		{CycleID: "c", ChatID: "1", Course: "A", Outcome: domain.OutcomeError, CheckedAt: time.Now()},
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.RecentChecks(context.Background(), "1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestRecordChecksEmptyIsNoop(t *testing.T) {
	s := newMemoryStore(t)
	require.NoError(t, s.RecordChecks(context.Background(), nil))
}
