// Package postgres registers the "redshift" and "postgres" storage backends on
// pgx v5. Both use one *pgx.Conn per session. Redshift speaks the Postgres
// wire protocol but not its extended query features, so redshift sessions use
// the simple protocol and refuse client-side COPY FROM STDIN.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sparkify/internal/ddl"
	"sparkify/internal/storage"
)

// Default ports per kind.
const (
	DefaultRedshiftPort = "5439"
	DefaultPostgresPort = "5432"
)

// connect is a test hook that points to pgx.ConnectConfig by default.
var connect = pgx.ConnectConfig

func init() {
	storage.Register(ddl.Redshift, Open)
	storage.Register(ddl.Postgres, Open)
}

// Session is a pgx-backed storage.Session.
type Session struct {
	conn *pgx.Conn
	kind ddl.Dialect
}

var (
	_ storage.Session    = (*Session)(nil)
	_ storage.Transactor = (*Session)(nil)
)

// DSN renders cfg as a postgres:// URL. A non-empty cfg.DSN is returned as is.
func DSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == "" {
		port = DefaultPostgresPort
		if cfg.Kind == ddl.Redshift {
			port = DefaultRedshiftPort
		}
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, port),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// ConnConfig parses cfg into a pgx connection config.
func ConnConfig(cfg storage.Config) (*pgx.ConnConfig, error) {
	cc, err := pgx.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: parse dsn: %w", cfg.Kind, err)
	}
	if cfg.Kind == ddl.Redshift {
		cc.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	return cc, nil
}

// Open connects to cfg.Host and returns a Session.
func Open(ctx context.Context, cfg storage.Config) (storage.Session, error) {
	cc, err := ConnConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := connect(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", cfg.Kind, err)
	}
	return &Session{conn: conn, kind: cfg.Kind}, nil
}

func (s *Session) Dialect() ddl.Dialect { return s.kind }

// Exec runs one statement. Without an explicit BEGIN the server commits it
// on completion.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if strings.TrimSpace(sql) == "" {
		return 0, nil
	}
	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, describe(err)
	}
	return tag.RowsAffected(), nil
}

// CopyFrom streams rows through the COPY protocol. Redshift only loads from
// S3, so it is rejected there.
func (s *Session) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if s.kind == ddl.Redshift {
		return 0, fmt.Errorf("redshift: client-side COPY is not supported; load from S3")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return copyFrom(ctx, s.conn, table, columns, rows)
}

// Begin opens a transaction for client-side COPY. Redshift refuses it for the
// same reason it refuses CopyFrom.
func (s *Session) Begin(ctx context.Context) (storage.Tx, error) {
	if s.kind == ddl.Redshift {
		return nil, fmt.Errorf("redshift: client-side COPY is not supported; load from S3")
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.kind, describe(err))
	}
	return &pgTx{tx: tx}, nil
}

type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func copyFrom(ctx context.Context, c copier, table string, columns []string, rows [][]any) (int64, error) {
	n, err := c.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, describe(err))
	}
	return n, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return copyFrom(ctx, t.tx, table, columns, rows)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return describe(t.tx.Commit(ctx))
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func (s *Session) Query(ctx context.Context, sql string, fn func([]any) error) error {
	rows, err := s.conn.Query(ctx, sql)
	if err != nil {
		return describe(err)
	}
	defer rows.Close()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return describe(rows.Err())
}

func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// describe folds a server error's detail into the message. The original error
// stays in the chain.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (detail: %s)", err, pgErr.Detail)
	}
	return err
}
