package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

// script is a database/sql driver that replays an expected sequence of
// statements and fails on anything else.
type script struct {
	mu    sync.Mutex
	steps []step
	pos   int
	args  [][]driver.Value
}

type stepKind string

const (
	kindExec     stepKind = "exec"
	kindQuery    stepKind = "query"
	kindBegin    stepKind = "begin"
	kindCommit   stepKind = "commit"
	kindRollback stepKind = "rollback"
)

type step struct {
	kind     stepKind
	sql      string
	affected int64
	columns  []string
	rows     [][]driver.Value
	err      error
}

func expectExec(query string) step { return step{kind: kindExec, sql: query, affected: 1} }

func expectQuery(query string, columns []string, rows ...[]driver.Value) step {
	return step{kind: kindQuery, sql: query, columns: columns, rows: rows}
}

func expectBegin() step    { return step{kind: kindBegin} }
func expectCommit() step   { return step{kind: kindCommit} }
func expectRollback() step { return step{kind: kindRollback} }

func (s step) failing(err error) step {
	s.err = err
	return s
}

// openScript returns a single-connection pool over the scripted steps. The
// pool is closed and the script checked for leftovers when the test ends.
func openScript(t *testing.T, steps ...step) (*sql.DB, *script) {
	t.Helper()

	s := &script{steps: steps}
	db := sql.OpenDB(connector{s})
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pos != len(s.steps) {
			t.Errorf("script stopped at step %d of %d", s.pos, len(s.steps))
		}
	})
	return db, s
}

// argsAt returns the arguments bound at the i-th executed step.
func (s *script) argsAt(i int) []driver.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.args) {
		return nil
	}
	return s.args[i]
}

func (s *script) take(kind stepKind, query string, args []driver.NamedValue) (step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.steps) {
		return step{}, fmt.Errorf("unexpected %s after script end: %s", kind, query)
	}
	want := s.steps[s.pos]
	if want.kind != kind {
		return step{}, fmt.Errorf("step %d: want %s, got %s", s.pos, want.kind, kind)
	}
	if want.sql != "" && squash(want.sql) != squash(query) {
		return step{}, fmt.Errorf("step %d: want %q, got %q", s.pos, squash(want.sql), squash(query))
	}
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	s.args = append(s.args, values)
	s.pos++
	return want, want.err
}

func squash(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

type connector struct{ s *script }

func (c connector) Connect(context.Context) (driver.Conn, error) { return conn{c.s}, nil }
func (c connector) Driver() driver.Driver                        { return c }
func (c connector) Open(string) (driver.Conn, error)             { return conn{c.s}, nil }

type conn struct{ s *script }

func (c conn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepared statements are not scripted: %s", query)
}

func (c conn) Close() error               { return nil }
func (c conn) Ping(context.Context) error { return nil }

func (c conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c conn) Commit() error {
	_, err := c.s.take(kindCommit, "", nil)
	return err
}

func (c conn) Rollback() error {
	_, err := c.s.take(kindRollback, "", nil)
	return err
}

func (c conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if _, err := c.s.take(kindBegin, "", nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	st, err := c.s.take(kindExec, query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(st.affected), nil
}

func (c conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	st, err := c.s.take(kindQuery, query, args)
	if err != nil {
		return nil, err
	}
	return &rows{columns: st.columns, values: st.rows}, nil
}

type rows struct {
	columns []string
	values  [][]driver.Value
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if len(r.values) == 0 {
		return io.EOF
	}
	copy(dest, r.values[0])
	r.values = r.values[1:]
	return nil
}
