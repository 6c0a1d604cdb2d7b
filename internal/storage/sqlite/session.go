// Package sqlite registers the "sqlite" storage backend on modernc.org/sqlite.
// The database is a single file named by the connection's Database field (or
// a raw DSN). SQLite has no bulk-load API, so CopyFrom runs a prepared INSERT
// per row inside a transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sparkify/internal/ddl"
	"sparkify/internal/storage"
	"sparkify/internal/storage/sqldb"
)

// TimeLayout is how timestamps are stored. strftime and date comparisons
// understand it natively.
const TimeLayout = "2006-01-02 15:04:05.000"

// open is a test hook.
var open = sqldb.Open

func init() {
	storage.Register(ddl.SQLite, Open)
}

// Session is a SQLite storage.Session.
type Session struct {
	*sqldb.Conn
}

var (
	_ storage.Session    = (*Session)(nil)
	_ storage.Transactor = (*Session)(nil)
)

// DSN returns the driver DSN for cfg. A raw cfg.DSN wins; otherwise
// cfg.Database is the file path.
func DSN(cfg storage.Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	path := strings.TrimSpace(cfg.Database)
	if path == "" {
		return "", fmt.Errorf("sqlite: database path must not be empty")
	}
	if path == ":memory:" {
		return path, nil
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)", nil
}

// Open opens a SQLite session for cfg.
func Open(ctx context.Context, cfg storage.Config) (storage.Session, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	c, err := open(ctx, ddl.SQLite, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	c.Convert = toDriverValue
	return &Session{Conn: c}, nil
}

// CopyFrom inserts rows into table in a single transaction.
func (s *Session) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	return s.CopyOnce(ctx, s.insert, table, columns, rows)
}

// Begin starts a transaction whose CopyFrom calls commit together.
func (s *Session) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Conn.Begin(ctx, s.insert)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Session) insert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	stmt, err := tx.PrepareContext(ctx, sqldb.InsertSQL(ddl.SQLite, table, columns, func(int) string { return "?" }))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return inserted, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, s.ConvertArgs(row)...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func toDriverValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(TimeLayout)
	}
	return v
}
