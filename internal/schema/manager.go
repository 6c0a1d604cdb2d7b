// Package schema drops and recreates the warehouse tables.
package schema

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sparkify/internal/catalog"
	"sparkify/internal/etlerr"
	"sparkify/internal/storage"
)

// Phases reported in SchemaOperationFailed errors.
const (
	PhaseDrop   = "drop"
	PhaseCreate = "create"
)

// Manager resets the schema described by the catalog.
type Manager struct {
	logger *zap.Logger
}

// NewManager returns a Manager. A nil logger disables logging.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Reset drops every catalog table and then creates every catalog table, both
// in catalog order, one committed statement at a time. All drops complete
// before any create. The first failure stops the reset; statements already
// executed stay committed. Reset is safe to repeat.
func (m *Manager) Reset(ctx context.Context, sess storage.Session) error {
	d := sess.Dialect()

	drops, err := catalog.DropStatements(d)
	if err != nil {
		return etlerr.New(etlerr.KindSchemaOperationFailed, PhaseDrop, "", "", err)
	}
	creates, err := catalog.CreateStatements(d)
	if err != nil {
		return etlerr.New(etlerr.KindSchemaOperationFailed, PhaseCreate, "", "", err)
	}

	if err := m.run(ctx, sess, PhaseDrop, drops); err != nil {
		return err
	}
	return m.run(ctx, sess, PhaseCreate, creates)
}

func (m *Manager) run(ctx context.Context, sess storage.Session, phase string, stmts []catalog.Statement) error {
	for i, st := range stmts {
		start := time.Now()
		if _, err := sess.Exec(ctx, st.SQL); err != nil {
			m.logger.Error("schema statement failed",
				zap.String("phase", phase),
				zap.String("table", st.Table),
				zap.Error(err),
			)
			return etlerr.New(etlerr.KindSchemaOperationFailed, phase, st.Table, st.SQL, err)
		}
		m.logger.Info("schema statement done",
			zap.String("phase", phase),
			zap.String("table", st.Table),
			zap.Int("step", i+1),
			zap.Int("of", len(stmts)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}
