// Package sqlite keeps the encoded entity snapshot in an embedded SQLite
// database, one row per slot key.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"procureflow/pkg/domain"
)

var _ domain.SnapshotSlot = (*Slot)(nil)

const (
	defaultPath = "procureflow.db"
	defaultKey  = "procureflow"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS procureflow_snapshots (
		slot_key   TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	selectSQL = `SELECT payload FROM procureflow_snapshots WHERE slot_key = ?`
	upsertSQL = `INSERT INTO procureflow_snapshots (slot_key, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (slot_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	deleteSQL = `DELETE FROM procureflow_snapshots WHERE slot_key = ?`
)

// Slot is a domain.SnapshotSlot backed by a SQLite file.
type Slot struct {
	db  *sql.DB
	key string
}

// Open creates the database file (and its directory) when missing and
// ensures the snapshot table exists. Concurrent processes sharing the file
// wait up to five seconds for the write lock.
func Open(path, key string) (*Slot, error) {
	if path == "" {
		path = defaultPath
	}
	if key == "" {
		key = defaultKey
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := "file:" + path + "?" + url.Values{"_pragma": {"busy_timeout(5000)"}}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
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
	return tx.Commit()
}

// Clear deletes the slot row.
func (s *Slot) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteSQL, s.key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", s.key, err)
	}
	return nil
}

// Driver reports "sqlite".
func (s *Slot) Driver() string { return "sqlite" }

// Close releases the database handle.
func (s *Slot) Close() error { return s.db.Close() }
