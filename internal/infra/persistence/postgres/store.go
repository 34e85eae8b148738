// Package postgres keeps the encoded entity snapshot in a Postgres JSONB
// column, one row per slot key.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"procureflow/pkg/domain"
)

var _ domain.SnapshotSlot = (*Slot)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/procureflow?sslmode=disable"
	defaultKey = "procureflow"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS procureflow_snapshots (
		slot_key   TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	selectSQL = `SELECT payload FROM procureflow_snapshots WHERE slot_key = $1`
	upsertSQL = `INSERT INTO procureflow_snapshots (slot_key, payload, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (slot_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	deleteSQL = `DELETE FROM procureflow_snapshots WHERE slot_key = $1`
)

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// Slot is a domain.SnapshotSlot backed by the procureflow_snapshots table.
type Slot struct {
	db  *sql.DB
	key string
}

// Open connects to dsn (defaulting to a local procureflow database), checks
// the connection and creates the snapshot table when missing.
func Open(ctx context.Context, dsn, key string) (*Slot, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if key == "" {
		key = defaultKey
	}
	openMu.Lock()
	open := sqlOpen
	openMu.Unlock()

	db, err := open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &Slot{db: db, key: key}, nil
}

// Load returns the stored payload, or nil when the key has no row.
func (s *Slot) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectSQL, s.key).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select snapshot %s: %w", s.key, err)
	}
	return payload, nil
}

// Save upserts the payload in its own transaction.
func (s *Slot) Save(ctx context.Context, payload []byte) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, upsertSQL, s.key, payload); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", s.key, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the slot row.
func (s *Slot) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteSQL, s.key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", s.key, err)
	}
	return nil
}

// Driver reports "postgres".
func (s *Slot) Driver() string { return "postgres" }

// Close releases the connection pool.
func (s *Slot) Close() error { return s.db.Close() }

// OverrideSQLOpen replaces the sql.Open hook until the returned restore
// function runs.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) (restore func()) {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
