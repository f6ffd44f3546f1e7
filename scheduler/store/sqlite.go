package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore is a SQLite-backed AuditStore, for persisting
// scheduling decisions across process restarts during local development
// without standing up a database server.
type SQLiteAuditStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteAuditStore opens (creating if necessary) a SQLite database
// at path and ensures its schema exists. Use ":memory:" for an
// in-process, non-persistent database.
func NewSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite audit store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteAuditStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditStore) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS spawn_decisions (
			spawn_id TEXT PRIMARY KEY,
			mnemonic TEXT NOT NULL,
			winning_mode TEXT NOT NULL,
			ran_both_modes INTEGER NOT NULL,
			loser_duration_ms INTEGER NOT NULL,
			winner_error TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create spawn_decisions table: %w", err)
	}
	return nil
}

// RecordDecision upserts d by spawn ID.
func (s *SQLiteAuditStore) RecordDecision(ctx context.Context, d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sqlite audit store is closed")
	}

	const q = `
		INSERT INTO spawn_decisions
			(spawn_id, mnemonic, winning_mode, ran_both_modes, loser_duration_ms, winner_error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(spawn_id) DO UPDATE SET
			mnemonic=excluded.mnemonic,
			winning_mode=excluded.winning_mode,
			ran_both_modes=excluded.ran_both_modes,
			loser_duration_ms=excluded.loser_duration_ms,
			winner_error=excluded.winner_error,
			recorded_at=excluded.recorded_at
	`
	_, err := s.db.ExecContext(ctx, q,
		d.SpawnID, d.Mnemonic, d.WinningMode, boolToInt(d.RanBothModes),
		d.LoserDuration.Milliseconds(), d.WinnerError, d.RecordedAt)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// LoadDecision retrieves the Decision recorded for spawnID.
func (s *SQLiteAuditStore) LoadDecision(ctx context.Context, spawnID string) (Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT spawn_id, mnemonic, winning_mode, ran_both_modes, loser_duration_ms, winner_error, recorded_at
		FROM spawn_decisions WHERE spawn_id = ?
	`
	row := s.db.QueryRowContext(ctx, q, spawnID)

	var (
		d             Decision
		ranBoth       int
		loserDuration int64
	)
	if err := row.Scan(&d.SpawnID, &d.Mnemonic, &d.WinningMode, &ranBoth, &loserDuration, &d.WinnerError, &d.RecordedAt); err != nil {
		if err == sql.ErrNoRows {
			return Decision{}, ErrNotFound
		}
		return Decision{}, fmt.Errorf("load decision: %w", err)
	}
	d.RanBothModes = ranBoth != 0
	d.LoserDuration = time.Duration(loserDuration) * time.Millisecond
	return d, nil
}

// Close closes the underlying database handle.
func (s *SQLiteAuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
