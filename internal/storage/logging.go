package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sparkify/internal/ddl"
	"sparkify/internal/etlerr"
)

type loggingSession struct {
	Session
	logger *zap.Logger
}

// WithLogging wraps s so that every statement is logged at debug level with
// its elapsed time. Statements are abbreviated; argument values are not
// logged.
func WithLogging(s Session, logger *zap.Logger) Session {
	if logger == nil {
		return s
	}
	return &loggingSession{Session: s, logger: logger}
}

func (l *loggingSession) Dialect() ddl.Dialect { return l.Session.Dialect() }

func (l *loggingSession) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	start := time.Now()
	n, err := l.Session.Exec(ctx, sql, args...)
	l.logger.Debug("exec",
		zap.String("sql", etlerr.Abbreviate(sql)),
		zap.Int("args", len(args)),
		zap.Int64("rows", n),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return n, err
}

func (l *loggingSession) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	start := time.Now()
	n, err := l.Session.CopyFrom(ctx, table, columns, rows)
	l.logger.Debug("copy from",
		zap.String("table", table),
		zap.Int("columns", len(columns)),
		zap.Int64("rows", n),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return n, err
}

func (l *loggingSession) Query(ctx context.Context, sql string, fn func(values []any) error) error {
	start := time.Now()
	err := l.Session.Query(ctx, sql, fn)
	l.logger.Debug("query",
		zap.String("sql", etlerr.Abbreviate(sql)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return err
}

func (l *loggingSession) Begin(ctx context.Context) (Tx, error) {
	tx, err := Begin(ctx, l.Session)
	l.logger.Debug("begin", zap.Error(err))
	return tx, err
}
