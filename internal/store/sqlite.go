package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/shared"
	_ "modernc.org/sqlite"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository. dbPath may be MemoryPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	var dsn string
	if dbPath == MemoryPath {
		dsn = MemoryPath
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// WAL mode for better concurrency.
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS check_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		course TEXT NOT NULL,
		outcome TEXT NOT NULL,
		slot TEXT,
		detail TEXT,
		checked_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_check_history_chat ON check_history(chat_id, checked_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordChecks inserts records in one transaction.
func (s *SQLiteStore) RecordChecks(ctx context.Context, records []domain.CheckRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := shared.RetryOnConflict(ctx, "record checks", retryAttempts, retryBase, func() error {
		return s.insertChecks(ctx, records)
	})
	if err != nil {
		return fmt.Errorf("record checks: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insertChecks(ctx context.Context, records []domain.CheckRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO check_history (cycle_id, chat_id, course, outcome, slot, detail, checked_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.CycleID, string(r.ChatID), r.Course, string(r.Outcome),
			nullable(r.Slot), nullable(r.Detail), r.CheckedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert %s/%s: %w", r.ChatID, r.Course, err)
		}
	}
	return tx.Commit()
}

// RecentChecks returns up to limit records for chatID, newest first.
func (s *SQLiteStore) RecentChecks(ctx context.Context, chatID domain.ChatID, limit int) ([]domain.CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, cycle_id, chat_id, course, outcome, slot, detail, checked_at
		FROM check_history WHERE chat_id = ?
		ORDER BY checked_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(chatID), limit)
	if err != nil {
		return nil, fmt.Errorf("query check history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []domain.CheckRecord{}
	for rows.Next() {
		var (
			r         domain.CheckRecord
			chat      string
			outcome   string
			slot      sql.NullString
			detail    sql.NullString
			checkedAt int64
		)
		if err := rows.Scan(&r.ID, &r.CycleID, &chat, &r.Course, &outcome, &slot, &detail, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan check row: %w", err)
		}
		r.ChatID = domain.ChatID(chat)
		r.Outcome = domain.Outcome(outcome)
		r.Slot = slot.String
		r.Detail = detail.String
		r.CheckedAt = time.UnixMilli(checkedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check rows: %w", err)
	}
	return records, nil
}

// DeleteChat removes all history for chatID.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID domain.ChatID) (int64, error) {
	var n int64
	err := shared.RetryOnConflict(ctx, "delete chat history", retryAttempts, retryBase, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM check_history WHERE chat_id = ?`, string(chatID))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete chat history: %w", err)
	}
	return n, nil
}

// PruneBefore removes records checked before cutoffUnix (seconds).
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoffUnix int64) (int64, error) {
	var n int64
	err := shared.RetryOnConflict(ctx, "prune history", retryAttempts, retryBase, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM check_history WHERE checked_at < ?`, cutoffUnix*1000)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
