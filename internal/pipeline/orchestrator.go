// Package pipeline runs the warehouse ETL end to end on a single session:
// validate the configuration, reset the schema, load staging, populate the
// analytics tables.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sparkify/internal/config"
	"sparkify/internal/etlerr"
	"sparkify/internal/loader"
	"sparkify/internal/metrics"
	"sparkify/internal/schema"
	"sparkify/internal/storage"
	"sparkify/internal/transform"
	"sparkify/internal/verify"
)

// Phase names, used for logs, metrics steps and the report.
const (
	PhaseValidate  = "validate"
	PhaseConnect   = "connect"
	PhaseReset     = "schema_reset"
	PhaseLoad      = "load_staging"
	PhaseTransform = "populate_analytics"
	PhaseVerify    = "verify"
	PhaseRelease   = "release"
)

// DefaultJob names runs in metrics when Orchestrator.Job is empty.
const DefaultJob = "sparkify"

// Opener opens the session a run works on.
type Opener func(ctx context.Context, cfg storage.Config) (storage.Session, error)

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	logger *zap.Logger

	Open   Opener
	Schema *schema.Manager
	Loader *loader.Loader
	Engine *transform.Engine
	Verify *verify.Verifier
	// Job labels metrics.
	Job string
}

// New returns an Orchestrator using the registered storage backends. A nil
// loader gets a Loader without an S3 client.
func New(logger *zap.Logger, ld *loader.Loader) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ld == nil {
		ld = loader.New(logger, nil)
	}
	return &Orchestrator{
		logger: logger,
		Open:   storage.Open,
		Schema: schema.NewManager(logger),
		Loader: ld,
		Engine: transform.NewEngine(logger),
		Verify: verify.New(logger),
		Job:    DefaultJob,
	}
}

// PhaseReport is the outcome of one phase.
type PhaseReport struct {
	Phase   string
	Elapsed time.Duration
	Err     error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	State    State
	History  []State
	Started  time.Time
	Elapsed  time.Duration
	Phases   []PhaseReport
	Staged   map[string]int64
	Inserted map[string]int64
}

// Run executes the whole pipeline against the warehouse described by rec.
//
// The configuration is validated before any connection is opened. Exactly
// one session is used and it is released on every exit path. A release
// failure after another failure is logged and the original error is
// returned; a release failure after a successful run fails the run.
func (o *Orchestrator) Run(ctx context.Context, rec config.Record) (Report, error) {
	m := NewMachine()
	rep := Report{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Staged:   map[string]int64{},
		Inserted: map[string]int64{},
	}
	log := o.logger.With(zap.String("run_id", rep.RunID))
	log.Info("run started", zap.Stringer("config", rec))

	err := o.withSession(ctx, log, rec, &rep, func(sess storage.Session) error {
		steps := []struct {
			phase string
			to    State
			fn    func() error
		}{
			{PhaseReset, StateSchemaReset, func() error { return o.Schema.Reset(ctx, sess) }},
			{PhaseLoad, StateStagingLoaded, func() error {
				res, err := o.Loader.LoadStaging(ctx, sess, rec)
				for _, t := range res.Tables {
					rep.Staged[t.Table] = t.Rows
					metrics.RecordRows(o.job(), t.Table, metrics.RowKindStaged, t.Rows)
					metrics.RecordBatches(o.job(), t.Table, t.Batches)
				}
				return err
			}},
			{PhaseTransform, StateAnalyticsPopulated, func() error {
				res, err := o.Engine.PopulateAnalytics(ctx, sess)
				for _, t := range res.Tables {
					rep.Inserted[t.Table] = t.Rows
					metrics.RecordRows(o.job(), t.Table, metrics.RowKindInserted, t.Rows)
				}
				return err
			}},
		}
		for _, s := range steps {
			if err := o.phase(log, &rep, s.phase, s.fn); err != nil {
				return err
			}
			if err := m.Advance(s.to); err != nil {
				return err
			}
			log.Info("state changed", zap.String("state", string(s.to)))
		}
		return nil
	})

	if err != nil {
		_ = m.Fail()
	} else if aerr := m.Advance(StateDone); aerr != nil {
		err = aerr
		_ = m.Fail()
	}
	rep.State = m.State()
	rep.History = m.History()
	rep.Elapsed = time.Since(rep.Started)
	metrics.RecordStep(o.job(), "run", err, rep.Elapsed)

	if err != nil {
		log.Error("run failed", zap.String("state", string(rep.State)), zap.Duration("elapsed", rep.Elapsed), zap.Error(err))
		return rep, err
	}
	log.Info("run finished", zap.String("state", string(rep.State)), zap.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// Reset validates rec and only resets the schema.
func (o *Orchestrator) Reset(ctx context.Context, rec config.Record) error {
	var rep Report
	return o.withSession(ctx, o.logger, rec, &rep, func(sess storage.Session) error {
		return o.phase(o.logger, &rep, PhaseReset, func() error { return o.Schema.Reset(ctx, sess) })
	})
}

// Load validates rec and only loads the staging tables. The tables must exist.
func (o *Orchestrator) Load(ctx context.Context, rec config.Record) (loader.Result, error) {
	var (
		rep Report
		res loader.Result
	)
	err := o.withSession(ctx, o.logger, rec, &rep, func(sess storage.Session) error {
		return o.phase(o.logger, &rep, PhaseLoad, func() error {
			var err error
			res, err = o.Loader.LoadStaging(ctx, sess, rec)
			return err
		})
	})
	return res, err
}

// Transform validates rec and only populates the analytics tables.
func (o *Orchestrator) Transform(ctx context.Context, rec config.Record) (transform.Result, error) {
	var (
		rep Report
		res transform.Result
	)
	err := o.withSession(ctx, o.logger, rec, &rep, func(sess storage.Session) error {
		return o.phase(o.logger, &rep, PhaseTransform, func() error {
			var err error
			res, err = o.Engine.PopulateAnalytics(ctx, sess)
			return err
		})
	})
	return res, err
}

// Check validates rec and runs the read-only verification.
func (o *Orchestrator) Check(ctx context.Context, rec config.Record) (verify.Report, error) {
	var (
		rep Report
		res verify.Report
	)
	err := o.withSession(ctx, o.logger, rec, &rep, func(sess storage.Session) error {
		return o.phase(o.logger, &rep, PhaseVerify, func() error {
			var err error
			res, err = o.Verify.Run(ctx, sess)
			return err
		})
	})
	return res, err
}

// withSession validates rec, opens one session, runs fn and releases the
// session.
func (o *Orchestrator) withSession(ctx context.Context, log *zap.Logger, rec config.Record, rep *Report, fn func(storage.Session) error) error {
	if err := o.phase(log, rep, PhaseValidate, func() error {
		issues := config.Validate(rec)
		for _, iss := range issues {
			if iss.Severity == config.SeverityWarning {
				log.Warn("config warning", zap.String("path", iss.Path), zap.String("message", iss.Message))
			}
		}
		return config.Check(issues)
	}); err != nil {
		return err
	}

	var sess storage.Session
	if err := o.phase(log, rep, PhaseConnect, func() error {
		var err error
		sess, err = o.Open(ctx, storage.FromRecord(rec))
		if err != nil {
			return fmt.Errorf("open %s session: %w", rec.Dialect(), err)
		}
		return nil
	}); err != nil {
		return err
	}
	sess = storage.WithLogging(sess, log)

	err := fn(sess)

	start := time.Now()
	var rel error
	if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
		rel = etlerr.New(etlerr.KindConnectionReleaseFailed, PhaseRelease, "", "", cerr)
	}
	rep.Phases = append(rep.Phases, PhaseReport{Phase: PhaseRelease, Elapsed: time.Since(start), Err: rel})
	metrics.RecordStep(o.job(), PhaseRelease, rel, time.Since(start))

	switch {
	case rel == nil:
		return err
	case err != nil:
		log.Error("session release failed", zap.Error(rel), zap.NamedError("cause", err))
		return err
	default:
		log.Error("session release failed", zap.Error(rel))
		return rel
	}
}

func (o *Orchestrator) phase(log *zap.Logger, rep *Report, name string, fn func() error) error {
	log.Info("phase started", zap.String("phase", name))
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	rep.Phases = append(rep.Phases, PhaseReport{Phase: name, Elapsed: elapsed, Err: err})
	metrics.RecordStep(o.job(), name, err, elapsed)
	if err != nil {
		log.Error("phase failed", zap.String("phase", name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	log.Info("phase done", zap.String("phase", name), zap.Duration("elapsed", elapsed))
	return nil
}

func (o *Orchestrator) job() string {
	if o.Job == "" {
		return DefaultJob
	}
	return o.Job
}
