package testutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestStubDBTransactionsAndQueries(t *testing.T) {
	ctx := context.Background()
	db, state := NewStubDB()
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS t (k TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO t VALUES ($1, $2)", "a", []byte("1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if state.Len() != 0 {
		t.Fatalf("write visible before commit")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if state.Len() != 0 {
		t.Fatalf("rollback kept write")
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO t VALUES ($1, $2)", "a", []byte("2")); err != nil {
		t.Fatalf("autocommit insert: %v", err)
	}
	var payload []byte
	if err := db.QueryRowContext(ctx, "SELECT payload FROM t WHERE k = $1", "a").Scan(&payload); err != nil {
		t.Fatalf("select: %v", err)
	}
	if string(payload) != "2" {
		t.Fatalf("unexpected payload %q", payload)
	}
	if err := db.QueryRowContext(ctx, "SELECT payload FROM t WHERE k = $1", "b").Scan(&payload); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM t WHERE k = $1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := state.Payload("a"); ok {
		t.Fatalf("expected row deleted")
	}
	if len(state.Statements()) != 6 {
		t.Fatalf("expected 6 recorded statements, got %v", state.Statements())
	}
}

func TestStubDBFailureFlags(t *testing.T) {
	ctx := context.Background()
	db, state := NewStubDB()
	defer func() { _ = db.Close() }()

	state.FailQuery = true
	if err := db.QueryRowContext(ctx, "SELECT payload FROM t WHERE k = $1", "a").Scan(new([]byte)); err == nil {
		t.Fatalf("expected query failure")
	}
	state.FailExec = true
	if _, err := db.ExecContext(ctx, "DELETE FROM t WHERE k = $1", "a"); err == nil {
		t.Fatalf("expected exec failure")
	}
	if _, err := db.ExecContext(ctx, "UPDATE t SET k = 1"); err == nil {
		t.Fatalf("expected unsupported statement failure")
	}
}
