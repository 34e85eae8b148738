// Package testutil provides a fake database/sql driver that understands the
// statements issued by the postgres snapshot slot, so the slot can be tested
// without a server.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Snapshots is the shared state behind every connection of a stub DB.
// Failure flags may be toggled between calls.
type Snapshots struct {
	mu         sync.Mutex
	rows       map[string][]byte
	statements []string

	FailPing   bool
	FailBegin  bool
	FailExec   bool
	FailQuery  bool
	FailCommit bool
}

// NewStubDB returns a *sql.DB whose connections all share one Snapshots.
func NewStubDB() (*sql.DB, *Snapshots) {
	state := &Snapshots{rows: make(map[string][]byte)}
	return sql.OpenDB(connector{state: state}), state
}

// Payload returns the stored payload for key.
func (s *Snapshots) Payload(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[key]
	return bytes.Clone(p), ok
}

// Len reports how many slot rows exist.
func (s *Snapshots) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Statements returns every statement executed or queried so far.
func (s *Snapshots) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statements...)
}

type connector struct{ state *Snapshots }

func (c connector) Connect(context.Context) (driver.Conn, error) { return &conn{state: c.state}, nil }

func (c connector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("stub driver: use sql.OpenDB")
}

// mutation is one staged write; a nil payload deletes the key.
type mutation struct {
	key     string
	payload []byte
}

type conn struct {
	state   *Snapshots
	pending *[]mutation
}

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub driver: prepared statements unsupported")
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) Ping(context.Context) error {
	if c.state.FailPing {
		return errors.New("stub driver: connection refused")
	}
	return nil
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.state.FailBegin {
		return nil, errors.New("stub driver: begin failed")
	}
	c.pending = &[]mutation{}
	return &tx{conn: c}, nil
}

func (c *conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	verb := c.record(query)
	if c.state.FailExec {
		return nil, fmt.Errorf("stub driver: exec failed: %s", verb)
	}
	var m mutation
	switch verb {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		if len(args) < 2 {
			return nil, errors.New("stub driver: insert expects key and payload")
		}
		payload, err := asBytes(args[1].Value)
		if err != nil {
			return nil, err
		}
		m = mutation{key: fmt.Sprint(args[0].Value), payload: payload}
	case "DELETE":
		if len(args) < 1 {
			return nil, errors.New("stub driver: delete expects a key")
		}
		m = mutation{key: fmt.Sprint(args[0].Value)}
	default:
		return nil, fmt.Errorf("stub driver: unsupported statement %q", query)
	}
	if c.pending != nil {
		*c.pending = append(*c.pending, m)
	} else {
		c.state.apply([]mutation{m})
	}
	return driver.RowsAffected(1), nil
}

func (c *conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if verb := c.record(query); verb != "SELECT" {
		return nil, fmt.Errorf("stub driver: unsupported query %q", query)
	}
	if c.state.FailQuery {
		return nil, errors.New("stub driver: query failed")
	}
	if len(args) < 1 {
		return nil, errors.New("stub driver: select expects a key")
	}
	r := &rows{}
	if payload, ok := c.state.Payload(fmt.Sprint(args[0].Value)); ok {
		r.values = append(r.values, payload)
	}
	return r, nil
}

func (c *conn) record(query string) string {
	c.state.mu.Lock()
	c.state.statements = append(c.state.statements, query)
	c.state.mu.Unlock()
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func (s *Snapshots) apply(ms []mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		if m.payload == nil {
			delete(s.rows, m.key)
			continue
		}
		s.rows[m.key] = m.payload
	}
}

func asBytes(v driver.Value) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return bytes.Clone(p), nil
	case string:
		return []byte(p), nil
	default:
		return nil, fmt.Errorf("stub driver: unexpected payload type %T", v)
	}
}

type tx struct{ conn *conn }

func (t *tx) Commit() error {
	pending := t.conn.pending
	t.conn.pending = nil
	if t.conn.state.FailCommit {
		return errors.New("stub driver: commit failed")
	}
	t.conn.state.apply(*pending)
	return nil
}

func (t *tx) Rollback() error {
	t.conn.pending = nil
	return nil
}

type rows struct {
	values [][]byte
	idx    int
}

func (r *rows) Columns() []string { return []string{"payload"} }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	dest[0] = r.values[r.idx]
	r.idx++
	return nil
}
