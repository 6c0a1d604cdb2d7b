// Package verify inspects a loaded warehouse: per-table row counts, an
// order-independent fingerprint of every table, and a few integrity checks
// on the star schema.
//
// A fingerprint is the wrapping sum of the xxh3 hash of each row's
// non-identity columns. Two tables holding the same multiset of rows have the
// same fingerprint no matter what order the rows were inserted or returned in,
// and the generated surrogate keys do not take part.
package verify

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"sparkify/internal/catalog"
	"sparkify/internal/ddl"
	"sparkify/internal/storage"
)

// TableReport summarizes one table.
type TableReport struct {
	Table       string
	Rows        int64
	Fingerprint uint64
}

// Hex renders the fingerprint as 16 hex digits.
func (t TableReport) Hex() string { return fmt.Sprintf("%016x", t.Fingerprint) }

// Check is the outcome of one integrity query: how many rows violate it.
type Check struct {
	Name       string
	Table      string
	Violations int64
}

// Report is the result of a verification run.
type Report struct {
	Tables []TableReport
	Checks []Check
}

// OK reports whether every integrity check passed.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if c.Violations != 0 {
			return false
		}
	}
	return true
}

// Table returns the report for name.
func (r Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// Verifier runs read-only checks against a session.
type Verifier struct {
	logger *zap.Logger
}

// New returns a Verifier. A nil logger disables logging.
func New(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// Run fingerprints every catalog table and runs the integrity checks.
func (v *Verifier) Run(ctx context.Context, sess storage.Session) (Report, error) {
	var rep Report
	for _, t := range catalog.Tables() {
		tr, err := Fingerprint(ctx, sess, t.Def)
		if err != nil {
			return rep, err
		}
		v.logger.Info("table fingerprinted",
			zap.String("table", tr.Table),
			zap.Int64("rows", tr.Rows),
			zap.String("fingerprint", tr.Hex()),
		)
		rep.Tables = append(rep.Tables, tr)
	}

	d := sess.Dialect()
	for _, c := range integrityChecks(d) {
		n, err := count(ctx, sess, c.sql)
		if err != nil {
			return rep, fmt.Errorf("verify %s: %w", c.name, err)
		}
		if n > 0 {
			v.logger.Warn("integrity check failed", zap.String("check", c.name), zap.Int64("violations", n))
		}
		rep.Checks = append(rep.Checks, Check{Name: c.name, Table: c.table, Violations: n})
	}
	return rep, nil
}

// Fingerprint reads every row of def's table and folds it into a TableReport.
func Fingerprint(ctx context.Context, sess storage.Session, def ddl.TableDef) (TableReport, error) {
	d := sess.Dialect()
	tr := TableReport{Table: def.Name}

	cols := def.InsertableColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.QuoteIdent(c.Name)
	}
	sql := "SELECT " + strings.Join(names, ", ") + " FROM " + d.QuoteIdent(def.Name)

	var buf []byte
	err := sess.Query(ctx, sql, func(values []any) error {
		buf = buf[:0]
		for _, val := range values {
			buf = appendValue(buf, val)
		}
		tr.Fingerprint += xxh3.Hash(buf)
		tr.Rows++
		return nil
	})
	if err != nil {
		return tr, fmt.Errorf("verify %s: %w", def.Name, err)
	}
	return tr, nil
}

// appendValue writes a type-tagged, length-prefixed encoding of v. Integers
// of every width share one tag so drivers that return int32 and int64 for
// the same column agree.
func appendValue(b []byte, v any) []byte {
	switch t := v.(type) {
	case nil:
		return append(b, 'n')
	case int64:
		return appendInt(b, t)
	case int32:
		return appendInt(b, int64(t))
	case int16:
		return appendInt(b, int64(t))
	case int:
		return appendInt(b, int64(t))
	case float64:
		b = append(b, 'f')
		return binary.BigEndian.AppendUint64(b, math.Float64bits(t))
	case float32:
		b = append(b, 'f')
		return binary.BigEndian.AppendUint64(b, math.Float64bits(float64(t)))
	case bool:
		if t {
			return append(b, 'T')
		}
		return append(b, 'F')
	case string:
		return appendText(b, 's', t)
	case []byte:
		return appendText(b, 's', string(t))
	case time.Time:
		return appendText(b, 't', t.UTC().Format(time.RFC3339Nano))
	default:
		return appendText(b, 'x', fmt.Sprint(t))
	}
}

func appendInt(b []byte, n int64) []byte {
	b = append(b, 'i')
	return binary.BigEndian.AppendUint64(b, uint64(n))
}

func appendText(b []byte, tag byte, s string) []byte {
	b = append(b, tag)
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	return append(b, s...)
}

type integrityCheck struct {
	name  string
	table string
	sql   string
}

func integrityChecks(d ddl.Dialect) []integrityCheck {
	q := d.QuoteIdent
	return []integrityCheck{
		{
			name:  "songplays_null_user",
			table: catalog.Songplays,
			sql:   fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", q(catalog.Songplays), q("user_id")),
		},
		{
			name:  "users_null_user",
			table: catalog.Users,
			sql:   fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", q(catalog.Users), q("user_id")),
		},
		{
			name:  "songplays_unknown_song",
			table: catalog.Songplays,
			sql: fmt.Sprintf("SELECT COUNT(*) FROM %s sp WHERE sp.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s s WHERE s.%s = sp.%s)",
				q(catalog.Songplays), q("song_id"), q(catalog.Songs), q("song_id"), q("song_id")),
		},
	}
}

func count(ctx context.Context, sess storage.Session, sql string) (int64, error) {
	var n int64
	err := sess.Query(ctx, sql, func(values []any) error {
		if len(values) != 1 {
			return fmt.Errorf("count: %d columns", len(values))
		}
		switch t := values[0].(type) {
		case int64:
			n = t
		case int32:
			n = int64(t)
		case int:
			n = int64(t)
		default:
			return fmt.Errorf("count: unexpected %T", t)
		}
		return nil
	})
	return n, err
}
