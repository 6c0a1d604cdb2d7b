// Package mssql registers the "mssql" storage backend on go-mssqldb. Bulk
// loads go through the driver's TDS bulk-copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"sparkify/internal/ddl"
	"sparkify/internal/storage"
	"sparkify/internal/storage/sqldb"
)

// DefaultPort is SQL Server's default TCP port.
const DefaultPort = "1433"

// open is a test hook.
var open = sqldb.Open

func init() {
	storage.Register(ddl.MSSQL, Open)
}

// Session is a SQL Server storage.Session.
type Session struct {
	*sqldb.Conn
}

var (
	_ storage.Session    = (*Session)(nil)
	_ storage.Transactor = (*Session)(nil)
)

// DSN renders cfg as a sqlserver:// URL and checks it with the driver's
// parser. A non-empty cfg.DSN is validated and returned as is.
func DSN(cfg storage.Config) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		port := cfg.Port
		if port == "" {
			port = DefaultPort
		}
		q := url.Values{"database": {cfg.Database}}
		switch cfg.SSLMode {
		case "disable":
			q.Set("encrypt", "disable")
		case "require", "verify-ca", "verify-full":
			q.Set("encrypt", "true")
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, port),
			RawQuery: q.Encode(),
		}
		dsn = u.String()
	}
	if _, err := msdsn.Parse(dsn); err != nil {
		return "", fmt.Errorf("mssql dsn: %w", err)
	}
	return dsn, nil
}

// Open connects to SQL Server and returns a Session.
func Open(ctx context.Context, cfg storage.Config) (storage.Session, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	c, err := open(ctx, ddl.MSSQL, "sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	return &Session{Conn: c}, nil
}

// CopyFrom bulk-copies rows into table and commits.
func (s *Session) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return s.CopyOnce(ctx, bulkCopy, table, columns, rows)
}

// Begin starts a transaction whose bulk copies commit together.
func (s *Session) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Conn.Begin(ctx, bulkCopy)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	copied, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return copied, nil
}
