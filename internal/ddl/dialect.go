package ddl

import (
	"fmt"
	"strings"
)

// Dialect names a SQL dialect understood by the renderers in this package.
// The values double as storage backend kinds.
type Dialect string

const (
	Redshift Dialect = "redshift"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MSSQL    Dialect = "mssql"
)

// Dialects lists every supported dialect.
var Dialects = []Dialect{Redshift, Postgres, SQLite, MSSQL}

// ParseDialect returns the Dialect for s (case-sensitive, trimmed).
func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.TrimSpace(s))
	for _, known := range Dialects {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("ddl: unknown dialect %q", s)
}

// QuoteIdent quotes a single identifier for d. Redshift, Postgres and SQLite
// use double quotes, SQL Server uses brackets; embedded quote characters are
// doubled.
func (d Dialect) QuoteIdent(id string) string {
	if d == MSSQL {
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteIdents maps QuoteIdent over names.
func (d Dialect) QuoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.QuoteIdent(n)
	}
	return out
}

// QuoteLiteral renders s as a single-quoted string literal for d.
func (d Dialect) QuoteLiteral(s string) string {
	q := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if d == MSSQL {
		return "N" + q
	}
	return q
}

// SQLType maps a column's logical type onto d's concrete type.
func (d Dialect) SQLType(c ColumnDef) (string, error) {
	switch d {
	case Redshift, Postgres:
		switch c.Type {
		case Int:
			return "INTEGER", nil
		case BigInt:
			return "BIGINT", nil
		case Double:
			return "DOUBLE PRECISION", nil
		case Varchar:
			return fmt.Sprintf("VARCHAR(%d)", c.MaxBytes()), nil
		case Timestamp:
			return "TIMESTAMP", nil
		}
	case SQLite:
		switch c.Type {
		case Int, BigInt:
			return "INTEGER", nil
		case Double:
			return "REAL", nil
		case Varchar, Timestamp:
			return "TEXT", nil
		}
	case MSSQL:
		switch c.Type {
		case Int:
			return "INT", nil
		case BigInt:
			return "BIGINT", nil
		case Double:
			return "FLOAT", nil
		case Varchar:
			if c.MaxBytes() > 4000 {
				return "NVARCHAR(MAX)", nil
			}
			return fmt.Sprintf("NVARCHAR(%d)", c.MaxBytes()), nil
		case Timestamp:
			return "DATETIME2", nil
		}
	default:
		return "", fmt.Errorf("ddl: unknown dialect %q", d)
	}
	return "", fmt.Errorf("ddl: column %s has unsupported type %q", c.Name, c.Type)
}
