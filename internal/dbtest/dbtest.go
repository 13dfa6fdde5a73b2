// Package dbtest provides an in-process database/sql driver that replays
// scripted results, for tests that exercise real *sql.DB code paths.
package dbtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Call records one statement sent to the driver.
type Call struct {
	Query string
	Args  []any
}

// Result is a scripted answer to a query.
type Result struct {
	Columns []string
	Rows    [][]driver.Value
	Err     error
}

// State is shared between a test and the driver it registered.
type State struct {
	mu sync.Mutex

	// Responder picks the answer for a query. When nil every query returns
	// an empty result.
	Responder func(call int, query string) Result
	// ExecErr, when set, decides the outcome of each Exec.
	ExecErr func(call int, query string, args []any) error

	queries []Call
	execs   []Call
}

// Queries returns a copy of the queries seen so far.
func (s *State) Queries() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.queries...)
}

// Execs returns a copy of the statements executed so far.
func (s *State) Execs() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.execs...)
}

// Respond is a Responder that matches queries by substring. The first
// matching key wins; keys are tried in the order given.
func Respond(pairs ...any) func(int, string) Result {
	type rule struct {
		match  string
		result Result
	}
	var rules []rule
	for i := 0; i+1 < len(pairs); i += 2 {
		rules = append(rules, rule{match: pairs[i].(string), result: pairs[i+1].(Result)})
	}
	return func(_ int, query string) Result {
		for _, r := range rules {
			if strings.Contains(query, r.match) {
				return r.result
			}
		}
		return Result{}
	}
}

var driverCounter uint64

// Open registers a fresh driver bound to state and opens a handle on it.
func Open(t testing.TB, state *State) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("dbtest-%d", atomic.AddUint64(&driverCounter, 1))
	sql.Register(name, &mockDriver{state: state})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type mockDriver struct {
	state *State
}

func (d *mockDriver) Open(string) (driver.Conn, error) {
	return &mockConn{state: d.state}, nil
}

type mockConn struct {
	state *State
}

var (
	_ driver.QueryerContext = (*mockConn)(nil)
	_ driver.ExecerContext  = (*mockConn)(nil)
)

func (c *mockConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.state.mu.Lock()
	c.state.queries = append(c.state.queries, Call{Query: query, Args: values(args)})
	idx := len(c.state.queries) - 1
	responder := c.state.Responder
	c.state.mu.Unlock()

	if responder == nil {
		return &mockRows{}, nil
	}
	res := responder(idx, query)
	if res.Err != nil {
		return nil, res.Err
	}
	return &mockRows{columns: res.Columns, values: res.Rows}, nil
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vals := values(args)
	c.state.mu.Lock()
	c.state.execs = append(c.state.execs, Call{Query: query, Args: vals})
	idx := len(c.state.execs) - 1
	execErr := c.state.ExecErr
	c.state.mu.Unlock()

	if execErr != nil {
		if err := execErr(idx, query, vals); err != nil {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

func values(args []driver.NamedValue) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }

func (r *mockRows) Close() error { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}
