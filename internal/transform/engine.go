// Package transform reshapes the staging tables into the star schema with
// set-based INSERT ... SELECT DISTINCT statements.
//
// Running the engine twice without a schema reset duplicates analytics rows;
// uniqueness comes from DISTINCT alone, not from constraints.
package transform

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sparkify/internal/etlerr"
	"sparkify/internal/storage"
)

// PhaseInsert is the phase reported in TransformFailed errors.
const PhaseInsert = "insert"

// Engine populates the fact and dimension tables.
type Engine struct {
	logger *zap.Logger
}

// NewEngine returns an Engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// TableResult is the outcome of one insert.
type TableResult struct {
	Table   string
	Rows    int64
	Elapsed time.Duration
}

// Result lists the completed inserts in execution order.
type Result struct {
	Tables []TableResult
}

// Rows returns the rows inserted into table.
func (r Result) Rows(table string) int64 {
	for _, t := range r.Tables {
		if t.Table == table {
			return t.Rows
		}
	}
	return 0
}

// PopulateAnalytics runs the analytics inserts in order, each committed on
// its own. The first failure stops the run with a TransformFailed error;
// tables populated before it keep their rows.
func (e *Engine) PopulateAnalytics(ctx context.Context, sess storage.Session) (Result, error) {
	var res Result

	stmts, err := Statements(sess.Dialect())
	if err != nil {
		return res, etlerr.New(etlerr.KindTransformFailed, PhaseInsert, "", "", err)
	}

	for i, st := range stmts {
		start := time.Now()
		n, err := sess.Exec(ctx, st.SQL)
		if err != nil {
			e.logger.Error("analytics insert failed", zap.String("table", st.Table), zap.Error(err))
			return res, etlerr.New(etlerr.KindTransformFailed, PhaseInsert, st.Table, st.SQL, err)
		}
		tr := TableResult{Table: st.Table, Rows: n, Elapsed: time.Since(start)}
		res.Tables = append(res.Tables, tr)
		e.logger.Info("analytics table populated",
			zap.String("table", st.Table),
			zap.Int64("rows", n),
			zap.Int("step", i+1),
			zap.Int("of", len(stmts)),
			zap.Duration("elapsed", tr.Elapsed),
		)
	}
	return res, nil
}
