// Package ddl defines a small model for SQL DDL and renders idempotent CREATE
// and DROP statements from it for each supported warehouse dialect.
//
// Rendering rules shared by every dialect:
//
//   - Identifiers are quoted with Dialect.QuoteIdent.
//   - Primary-key columns are always NOT NULL.
//   - CREATE is guarded so that it is a no-op when the table exists
//     (CREATE TABLE IF NOT EXISTS, or an OBJECT_ID guard on SQL Server).
//   - DROP is guarded so that it is a no-op when the table is absent.
//
// Redshift additionally renders IDENTITY(0,1), DISTKEY, SORTKEY and
// DISTSTYLE. The other dialects ignore physical design hints and render
// identity columns with their own auto-increment syntax.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders an idempotent CREATE TABLE statement for t in
// dialect d.
//
// Rules:
//   - t.Name must be non-empty and t must have at least one column.
//   - Each column must have a non-empty Name and a Type known to d.
//   - Identity columns must be Int or BigInt.
//   - On SQLite an identity column becomes INTEGER PRIMARY KEY AUTOINCREMENT,
//     so it cannot be combined with other primary-key columns.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	var sqliteIdentity bool

	for _, c := range t.Columns {
		cname := strings.TrimSpace(c.Name)
		if cname == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		if c.Identity && c.Type != Int && c.Type != BigInt {
			return "", fmt.Errorf("ddl: identity column %s.%s must be an integer type", name, cname)
		}

		if d == SQLite && c.Identity {
			cols = append(cols, d.QuoteIdent(cname)+" INTEGER PRIMARY KEY AUTOINCREMENT")
			sqliteIdentity = true
			continue
		}

		typ, err := d.SQLType(c)
		if err != nil {
			return "", err
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(cname))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if c.Identity {
			switch d {
			case Redshift, MSSQL:
				sb.WriteString(" IDENTITY(0,1)")
			case Postgres:
				sb.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
			}
		}
		if d == Redshift {
			if c.DistKey {
				sb.WriteString(" DISTKEY")
			}
			if c.SortKey {
				sb.WriteString(" SORTKEY")
			}
		}
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(cname))
		}
	}

	if len(pks) > 0 {
		if sqliteIdentity {
			return "", fmt.Errorf("ddl: table %s mixes an identity column with other primary-key columns", name)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	body := fmt.Sprintf("(\n  %s\n)", strings.Join(cols, ",\n  "))

	switch d {
	case MSSQL:
		return fmt.Sprintf(
			"IF OBJECT_ID(%s, N'U') IS NULL\nCREATE TABLE %s %s;",
			d.QuoteLiteral(name), d.QuoteIdent(name), body,
		), nil
	case Redshift:
		var suffix string
		if t.DistStyle != DistAuto {
			suffix = "\nDISTSTYLE " + string(t.DistStyle)
		}
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s%s;", d.QuoteIdent(name), body, suffix), nil
	default:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", d.QuoteIdent(name), body), nil
	}
}

// BuildDropTableSQL renders an idempotent DROP TABLE statement for name.
func BuildDropTableSQL(d Dialect, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if _, err := ParseDialect(string(d)); err != nil {
		return "", err
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdent(name)), nil
}
