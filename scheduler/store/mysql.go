package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLAuditStore is a MySQL/MariaDB-backed AuditStore, for fleets
// running dynamic execution across many build workers that want a
// shared, queryable record of scheduling decisions.
type MySQLAuditStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLAuditStore opens a connection pool against dsn (see
// github.com/go-sql-driver/mysql for DSN format: "user:pass@tcp(host:3306)/db")
// and ensures its schema exists.
func NewMySQLAuditStore(dsn string) (*MySQLAuditStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql audit store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &MySQLAuditStore{db: db}
	if err := s.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLAuditStore) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS spawn_decisions (
			spawn_id VARCHAR(255) PRIMARY KEY,
			mnemonic VARCHAR(255) NOT NULL,
			winning_mode VARCHAR(16) NOT NULL,
			ran_both_modes TINYINT(1) NOT NULL,
			loser_duration_ms BIGINT NOT NULL,
			winner_error TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create spawn_decisions table: %w", err)
	}
	return nil
}

// RecordDecision upserts d by spawn ID.
func (s *MySQLAuditStore) RecordDecision(ctx context.Context, d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mysql audit store is closed")
	}

	const q = `
		INSERT INTO spawn_decisions
			(spawn_id, mnemonic, winning_mode, ran_both_modes, loser_duration_ms, winner_error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			mnemonic=VALUES(mnemonic),
			winning_mode=VALUES(winning_mode),
			ran_both_modes=VALUES(ran_both_modes),
			loser_duration_ms=VALUES(loser_duration_ms),
			winner_error=VALUES(winner_error),
			recorded_at=VALUES(recorded_at)
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
func (s *MySQLAuditStore) LoadDecision(ctx context.Context, spawnID string) (Decision, error) {
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

// Close closes the underlying connection pool.
func (s *MySQLAuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
