// Package loader fills the staging tables.
//
// On Redshift each staging table is loaded by one server-side COPY from S3.
// Every other warehouse gets the same semantics client side: the objects
// under the location are listed and decoded as JSON, mapped to columns either
// by a jsonpaths file or by case-insensitive name, cleaned, and bulk inserted
// in batches inside one transaction per table.
//
// Each table is its own unit of work. A failed table does not stop the other
// one from loading. On the client side a failed table keeps none of its rows.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"sparkify/internal/catalog"
	"sparkify/internal/config"
	"sparkify/internal/datasource"
	"sparkify/internal/datasource/s3ds"
	"sparkify/internal/ddl"
	"sparkify/internal/etlerr"
	"sparkify/internal/storage"
)

// PhaseCopy is the phase reported in BulkLoadFailed errors.
const PhaseCopy = "copy"

// DefaultBatchSize is the number of rows per CopyFrom call.
const DefaultBatchSize = 1000

// Loader loads staging tables.
type Loader struct {
	logger *zap.Logger

	// S3 lists and reads s3:// locations for client-side loads. It is not
	// needed for Redshift, which reads S3 itself.
	S3 s3ds.API
	// BatchSize bounds the rows per CopyFrom call. Zero means DefaultBatchSize.
	BatchSize int
}

// New returns a Loader. A nil logger disables logging.
func New(logger *zap.Logger, s3 s3ds.API) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, S3: s3, BatchSize: DefaultBatchSize}
}

// TableResult describes the load of one staging table.
type TableResult struct {
	Table   string
	Rows    int64
	Objects int
	// Batches counts CopyFrom calls; it stays zero for server-side COPY.
	Batches int64
	Elapsed time.Duration
	Err     error
}

// Result collects the per-table outcomes in catalog order.
type Result struct {
	Tables []TableResult
}

// Rows returns the rows loaded into table.
func (r Result) Rows(table string) int64 {
	for _, t := range r.Tables {
		if t.Table == table {
			return t.Rows
		}
	}
	return 0
}

// LoadStaging loads every staging table from the locations in rec. Both tables
// are attempted even when one fails; the returned error joins one
// BulkLoadFailed per failed table.
func (l *Loader) LoadStaging(ctx context.Context, sess storage.Session, rec config.Record) (Result, error) {
	var (
		res  Result
		errs []error
	)
	sources := Sources(rec)
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, etlerr.New(etlerr.KindBulkLoadFailed, PhaseCopy, src.Table, "", err))
			break
		}
		l.logger.Info("loading staging table",
			zap.String("table", src.Table),
			zap.String("location", src.Location),
			zap.Int("step", i+1),
			zap.Int("of", len(sources)),
		)

		start := time.Now()
		tr, err := l.loadTable(ctx, sess, src, rec)
		tr.Table = src.Table
		tr.Elapsed = time.Since(start)
		tr.Err = err
		res.Tables = append(res.Tables, tr)

		if err != nil {
			l.logger.Error("staging load failed", zap.String("table", src.Table), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		l.logger.Info("staging table loaded",
			zap.String("table", src.Table),
			zap.Int64("rows", tr.Rows),
			zap.Int("objects", tr.Objects),
			zap.Duration("elapsed", tr.Elapsed),
		)
	}
	return res, errors.Join(errs...)
}

func (l *Loader) loadTable(ctx context.Context, sess storage.Session, src Source, rec config.Record) (TableResult, error) {
	if sess.Dialect() == ddl.Redshift {
		stmt, err := CopyStatement(src, rec)
		if err != nil {
			return TableResult{}, etlerr.New(etlerr.KindBulkLoadFailed, PhaseCopy, src.Table, "", err)
		}
		n, err := sess.Exec(ctx, stmt)
		if err != nil {
			return TableResult{}, etlerr.New(etlerr.KindBulkLoadFailed, PhaseCopy, src.Table, stmt, err)
		}
		return TableResult{Rows: n}, nil
	}

	tr, err := l.loadClientSide(ctx, sess, src)
	if err != nil {
		return tr, etlerr.New(etlerr.KindBulkLoadFailed, PhaseCopy, src.Table, "", err)
	}
	return tr, nil
}

func (l *Loader) loadClientSide(ctx context.Context, sess storage.Session, src Source) (TableResult, error) {
	var tr TableResult

	table, ok := catalog.Lookup(src.Table)
	if !ok {
		return tr, fmt.Errorf("unknown table %q", src.Table)
	}
	m, err := l.newMapper(ctx, sess.Dialect(), table.Def, src)
	if err != nil {
		return tr, err
	}
	lister, err := l.lister(src.Location)
	if err != nil {
		return tr, err
	}

	batch := l.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	tx, err := storage.Begin(ctx, sess)
	if err != nil {
		return tr, err
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, batch)

	// rows is closed only after every object decoded. On failure it stays
	// open and the consumer stops on gctx without flushing what it holds.
	g.Go(func() error {
		objs, err := lister.List(gctx)
		if err != nil {
			return err
		}
		tr.Objects = len(objs)
		for _, o := range objs {
			if err := l.streamRows(gctx, o, m, rows); err != nil {
				return err
			}
		}
		close(rows)
		return nil
	})
	copyFn := storage.SessionCopy(tx, src.Table)
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, l.logger.With(zap.String("table", src.Table)),
			m.columnNames(), rows, batch,
			func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
				tr.Batches++
				return copyFn(ctx, columns, rows)
			})
		tr.Rows = n
		return err
	})

	if err := g.Wait(); err != nil {
		tr.Rows = 0
		if rerr := tx.Rollback(ctx); rerr != nil {
			l.logger.Warn("rollback failed", zap.String("table", src.Table), zap.Error(rerr))
		}
		return tr, err
	}
	if err := tx.Commit(ctx); err != nil {
		tr.Rows = 0
		return tr, err
	}
	return tr, nil
}

func (l *Loader) streamRows(ctx context.Context, o datasource.Object, m *mapper, out chan<- []any) error {
	rc, err := o.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	n, err := streamObjects(ctx, rc, func(obj map[string]any) error {
		select {
		case out <- m.row(obj):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", o.Name(), err)
	}
	l.logger.Debug("object decoded", zap.String("object", o.Name()), zap.Int("records", n))
	return nil
}

// mapper turns one decoded JSON object into a row aligned with cols.
type mapper struct {
	dialect     ddl.Dialect
	cols        []ddl.ColumnDef
	epochMillis bool

	// paths, when set, select one value per column in order.
	paths []Path
	// fold maps case-folded key names to column positions.
	fold  map[string]int
	caser cases.Caser
}

func (l *Loader) newMapper(ctx context.Context, d ddl.Dialect, def ddl.TableDef, src Source) (*mapper, error) {
	m := &mapper{dialect: d, cols: def.InsertableColumns(), epochMillis: src.EpochMillis}

	if src.JSONPaths == "" {
		m.caser = cases.Fold()
		m.fold = make(map[string]int, len(m.cols))
		for i, c := range m.cols {
			m.fold[m.caser.String(c.Name)] = i
		}
		return m, nil
	}

	obj, err := l.object(src.JSONPaths)
	if err != nil {
		return nil, err
	}
	rc, err := obj.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	paths, err := ParseJSONPaths(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", obj.Name(), err)
	}
	if len(paths) != len(m.cols) {
		return nil, fmt.Errorf("%s: %d paths for %d columns", obj.Name(), len(paths), len(m.cols))
	}
	m.paths = paths
	return m, nil
}

func (m *mapper) columnNames() []string {
	out := make([]string, len(m.cols))
	for i, c := range m.cols {
		out[i] = c.Name
	}
	return out
}

func (m *mapper) row(obj map[string]any) []any {
	row := make([]any, len(m.cols))
	if m.paths != nil {
		for i, p := range m.paths {
			row[i] = cleanValue(m.dialect, m.cols[i], p.Lookup(obj), m.epochMillis)
		}
		return row
	}

	raw := make([]any, len(m.cols))
	exact := make([]bool, len(m.cols))
	for k, v := range obj {
		i, ok := m.fold[m.caser.String(k)]
		if !ok || exact[i] {
			continue
		}
		raw[i] = v
		exact[i] = k == m.cols[i].Name
	}
	for i, v := range raw {
		row[i] = cleanValue(m.dialect, m.cols[i], v, m.epochMillis)
	}
	return row
}
