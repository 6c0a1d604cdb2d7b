package loader

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"sparkify/internal/ddl"
)

// cleanValue coerces a decoded JSON value into the Go value stored in col,
// applying the same cleaning a Redshift COPY with TRUNCATECOLUMNS,
// BLANKSASNULL and EMPTYASNULL does. Values that cannot be coerced become nil.
// Text is cut to the column length as d counts it.
func cleanValue(d ddl.Dialect, col ddl.ColumnDef, v any, epochMillis bool) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}

	switch col.Type {
	case ddl.Varchar:
		s, ok := scalarText(v)
		if !ok {
			return nil
		}
		return truncateText(d, s, col.MaxBytes())
	case ddl.Int:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil
		}
		return n
	case ddl.BigInt:
		n, ok := toInt64(v)
		if !ok {
			return nil
		}
		return n
	case ddl.Double:
		f, ok := toFloat64(v)
		if !ok {
			return nil
		}
		return f
	case ddl.Timestamp:
		return toTime(v, epochMillis)
	}
	return nil
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// truncateText cuts s to the length limit of a VARCHAR(max) column in d.
// Postgres counts characters and SQL Server's NVARCHAR counts UTF-16 code
// units. Redshift counts bytes, and SQLite, which enforces no limit, follows
// Redshift so that every client-side load keeps the same text.
func truncateText(d ddl.Dialect, s string, max int) string {
	switch d {
	case ddl.Postgres:
		return truncateRunes(s, max)
	case ddl.MSSQL:
		return truncateUTF16(s, max)
	}
	return truncateBytes(s, max)
}

func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func truncateUTF16(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if n+w > max {
			return s[:i]
		}
		n += w
	}
	return s
}

// truncateBytes cuts s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func toInt64(v any) (int64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v any) (float64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Accepted textual timestamp layouts when the source is not epoch millis.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any, epochMillis bool) any {
	if epochMillis {
		ms, ok := toInt64(v)
		if !ok {
			return nil
		}
		return time.UnixMilli(ms).UTC()
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return nil
}
