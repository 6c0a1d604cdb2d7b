// Package sqldb implements the statement half of storage.Session on top of a
// single database/sql connection. Backends that speak database/sql (sqlite,
// mssql) embed *Conn and add their own bulk path.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sparkify/internal/ddl"
)

// Conn pins one *sql.Conn out of a pool so that every statement of a run
// shares a connection.
type Conn struct {
	DB   *sql.DB
	Conn *sql.Conn
	Kind ddl.Dialect

	// Convert, when set, rewrites each statement argument before the driver
	// sees it.
	Convert func(any) any
}

// Open opens driverName/dsn, verifies it, and pins a single connection.
func Open(ctx context.Context, kind ddl.Dialect, driverName, dsn string) (*Conn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", kind, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: connect: %w", kind, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", kind, err)
	}
	return &Conn{DB: db, Conn: conn, Kind: kind}, nil
}

func (c *Conn) Dialect() ddl.Dialect { return c.Kind }

// Exec runs sql outside any explicit transaction, so the driver commits it
// before returning.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if strings.TrimSpace(sql) == "" {
		return 0, nil
	}
	res, err := c.Conn.ExecContext(ctx, sql, c.ConvertArgs(args)...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Query runs sql and hands each row to fn. []byte values are returned as
// strings.
func (c *Conn) Query(ctx context.Context, sql string, fn func([]any) error) error {
	rows, err := c.Conn.QueryContext(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close returns the pinned connection and closes the pool.
func (c *Conn) Close(context.Context) error {
	cerr := c.Conn.Close()
	if err := c.DB.Close(); err != nil {
		return fmt.Errorf("%s: close: %w", c.Kind, err)
	}
	if cerr != nil && cerr != sql.ErrConnDone {
		return fmt.Errorf("%s: close: %w", c.Kind, cerr)
	}
	return nil
}

// BulkFunc inserts rows into table inside tx.
type BulkFunc func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error)

// Tx runs a backend's BulkFunc inside one database/sql transaction.
type Tx struct {
	tx   *sql.Tx
	kind ddl.Dialect
	bulk BulkFunc
}

// Begin starts a transaction on the pinned connection. It stays open until
// Commit or Rollback, or until ctx is done, at which point database/sql rolls
// it back.
func (c *Conn) Begin(ctx context.Context, bulk BulkFunc) (*Tx, error) {
	tx, err := c.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", c.Kind, err)
	}
	return &Tx{tx: tx, kind: c.Kind, bulk: bulk}, nil
}

func (t *Tx) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return t.bulk(ctx, t.tx, table, columns, rows)
}

func (t *Tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.kind, err)
	}
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback: %w", t.kind, err)
	}
	return nil
}

// CopyOnce runs bulk in a transaction of its own and commits it.
func (c *Conn) CopyOnce(ctx context.Context, bulk BulkFunc, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := c.Begin(ctx, bulk)
	if err != nil {
		return 0, err
	}
	n, err := tx.CopyFrom(ctx, table, columns, rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// ConvertArgs applies Convert to each argument. It returns args unchanged
// when no converter is set.
func (c *Conn) ConvertArgs(args []any) []any {
	if c.Convert == nil || len(args) == 0 {
		return args
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = c.Convert(a)
	}
	return out
}

// InsertSQL renders a parameterized single-row INSERT for table/columns using
// placeholder(i) for the i-th (1-based) argument.
func InsertSQL(d ddl.Dialect, table string, columns []string, placeholder func(i int) string) string {
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table),
		strings.Join(d.QuoteIdents(columns), ", "),
		strings.Join(ph, ", "),
	)
}
