// Package storage contains the backend-agnostic database session contract and
// the factory that concrete backends register with.
//
// A Session is exactly one database connection. Every statement passed to
// Exec runs in autocommit mode: it is committed (or rolled back) before Exec
// returns, so each statement is its own unit of work. The pipeline relies on
// this for its partial-completion semantics.
//
// Backends live in subpackages and register themselves at init time:
//
//   - "redshift", "postgres" (sparkify/internal/storage/postgres)
//   - "sqlite"               (sparkify/internal/storage/sqlite)
//   - "mssql"                (sparkify/internal/storage/mssql)
//
// Import sparkify/internal/storage/all to enable all of them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"sparkify/internal/config"
	"sparkify/internal/ddl"
)

// Session is a single database connection.
type Session interface {
	// Dialect reports the SQL dialect spoken by the connection.
	Dialect() ddl.Dialect
	// Exec runs one statement and commits it. It returns the number of rows
	// affected when the backend reports one.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// CopyFrom bulk-inserts rows (aligned to columns) into table using the
	// backend's native client-side bulk path.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	// Query runs sql and calls fn once per result row. The values slice is
	// only valid for the duration of the call.
	Query(ctx context.Context, sql string, fn func(values []any) error) error
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Tx groups bulk loads into one transaction. Rows copied through it are not
// visible to the session until Commit.
type Tx interface {
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	// Rollback discards the transaction. It returns nil when the transaction
	// has already ended.
	Rollback(ctx context.Context) error
}

// Transactor is implemented by sessions that can begin a bulk-load Tx.
type Transactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// ErrNoTx is returned by Begin for sessions that do not implement Transactor.
var ErrNoTx = errors.New("storage: session does not support transactions")

// Begin starts a bulk-load transaction on s.
func Begin(ctx context.Context, s Session) (Tx, error) {
	t, ok := s.(Transactor)
	if !ok {
		return nil, ErrNoTx
	}
	return t.Begin(ctx)
}

// Config carries connection parameters for any backend.
type Config struct {
	Kind     ddl.Dialect
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string

	// DSN, when set, is handed to the driver verbatim and the discrete fields
	// above are ignored.
	DSN string
}

// FromRecord derives a session Config from a validated configuration record.
func FromRecord(rec config.Record) Config {
	return Config{
		Kind:     rec.Dialect(),
		Host:     rec.Host,
		Port:     rec.DBPort,
		Database: rec.DBName,
		User:     rec.DBUser,
		Password: rec.DBPassword,
		SSLMode:  rec.SSLMode,
		DSN:      rec.DSN,
	}
}

// Opener opens a Session for cfg.
type Opener func(ctx context.Context, cfg Config) (Session, error)

var (
	mu      sync.RWMutex
	openers = map[ddl.Dialect]Opener{}
)

// Register registers (or replaces) the Opener for a backend kind. It is
// typically called from backend packages' init functions.
func Register(kind ddl.Dialect, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[kind] = fn
}

// Open opens a Session with the backend registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Session, error) {
	mu.RLock()
	fn, ok := openers[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (registered: %v)", cfg.Kind, Registered())
	}
	return fn(ctx, cfg)
}

// Registered returns the registered backend kinds, sorted.
func Registered() []ddl.Dialect {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]ddl.Dialect, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
