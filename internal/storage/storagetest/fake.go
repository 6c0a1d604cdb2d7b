// Package storagetest provides an in-memory storage.Session for unit tests.
package storagetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"sparkify/internal/ddl"
	"sparkify/internal/storage"
)

// Call is one recorded session call.
type Call struct {
	Op    string // "exec", "copy", "query", "begin", "commit", "rollback" or "close"
	SQL   string
	Table string
	Rows  int
}

// Session records every call and fails on demand. It is safe for concurrent
// use.
type Session struct {
	Kind ddl.Dialect

	// FailOn makes Exec/Query fail with FailErr when the statement contains
	// this substring. For CopyFrom it is matched against the table name.
	FailOn  string
	FailErr error

	// CloseErr is returned by Close.
	CloseErr error
	// BeginErr is returned by Begin.
	BeginErr error

	// Results maps a substring of a query to the rows it returns.
	Results map[string][][]any

	// Affected is returned by Exec as the row count.
	Affected int64

	mu     sync.Mutex
	calls  []Call
	copied map[string][][]any
	closed bool
}

var (
	_ storage.Session    = (*Session)(nil)
	_ storage.Transactor = (*Session)(nil)
)

// New returns a fake session speaking d.
func New(d ddl.Dialect) *Session {
	return &Session{Kind: d}
}

func (s *Session) Dialect() ddl.Dialect { return s.Kind }

func (s *Session) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	s.record(Call{Op: "exec", SQL: sql})
	if s.FailOn != "" && strings.Contains(sql, s.FailOn) {
		return 0, s.FailErr
	}
	return s.Affected, nil
}

func (s *Session) CopyFrom(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	if err := s.copy(table, rows); err != nil {
		return 0, err
	}
	s.commit(map[string][][]any{table: rows})
	return int64(len(rows)), nil
}

// Begin returns a Tx whose copies reach Copied only on Commit.
func (s *Session) Begin(context.Context) (storage.Tx, error) {
	s.record(Call{Op: "begin"})
	if s.BeginErr != nil {
		return nil, s.BeginErr
	}
	return &tx{s: s, pending: map[string][][]any{}}, nil
}

func (s *Session) copy(table string, rows [][]any) error {
	s.record(Call{Op: "copy", Table: table, Rows: len(rows)})
	if s.FailOn != "" && s.FailOn == table {
		return s.FailErr
	}
	return nil
}

func (s *Session) commit(rows map[string][][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copied == nil {
		s.copied = map[string][][]any{}
	}
	for table, r := range rows {
		s.copied[table] = append(s.copied[table], r...)
	}
}

type tx struct {
	s       *Session
	mu      sync.Mutex
	pending map[string][][]any
	done    bool
}

func (t *tx) CopyFrom(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	if err := t.s.copy(table, rows); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return 0, errors.New("storagetest: transaction has ended")
	}
	t.pending[table] = append(t.pending[table], rows...)
	return int64(len(rows)), nil
}

func (t *tx) Commit(context.Context) error {
	t.s.record(Call{Op: "commit"})
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("storagetest: transaction has ended")
	}
	t.done = true
	t.s.commit(t.pending)
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.s.record(Call{Op: "rollback"})
	t.done = true
	t.pending = nil
	return nil
}

func (s *Session) Query(_ context.Context, sql string, fn func([]any) error) error {
	s.record(Call{Op: "query", SQL: sql})
	if s.FailOn != "" && strings.Contains(sql, s.FailOn) {
		return s.FailErr
	}
	for key, rows := range s.Results {
		if !strings.Contains(sql, key) {
			continue
		}
		for _, r := range rows {
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (s *Session) Close(context.Context) error {
	s.record(Call{Op: "close"})
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.CloseErr
}

func (s *Session) record(c Call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Statements returns the SQL of every recorded Exec, in order.
func (s *Session) Statements() []string {
	var out []string
	for _, c := range s.Calls() {
		if c.Op == "exec" {
			out = append(out, c.SQL)
		}
	}
	return out
}

// Copied returns the rows committed to table, either by CopyFrom or by a Tx.
func (s *Session) Copied(table string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.copied[table]...)
}

// Ops returns the Op of every recorded call, in order.
func (s *Session) Ops() []string {
	var out []string
	for _, c := range s.Calls() {
		out = append(out, c.Op)
	}
	return out
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
