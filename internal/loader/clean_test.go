package loader

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/ddl"
)

func TestCleanValue(t *testing.T) {
	t.Parallel()

	varchar := ddl.ColumnDef{Name: "v", Type: ddl.Varchar, Length: 5}
	integer := ddl.ColumnDef{Name: "i", Type: ddl.Int}
	bigint := ddl.ColumnDef{Name: "b", Type: ddl.BigInt}
	double := ddl.ColumnDef{Name: "d", Type: ddl.Double}
	ts := ddl.ColumnDef{Name: "ts", Type: ddl.Timestamp}

	cases := []struct {
		name   string
		col    ddl.ColumnDef
		in     any
		millis bool
		want   any
	}{
		{"nil", varchar, nil, false, nil},
		{"empty string", varchar, "", false, nil},
		{"blank string", varchar, "   ", false, nil},
		{"short string", varchar, "free", false, "free"},
		{"truncated", varchar, "Logged In", false, "Logge"},
		{"truncated on rune boundary", varchar, "abcdé", false, "abcd"},
		{"number as text", varchar, json.Number("200"), false, "200"},
		{"bool as text", varchar, true, false, "true"},
		{"object is malformed", varchar, map[string]any{"a": 1}, false, nil},
		{"int from number", integer, json.Number("139"), false, int64(139)},
		{"int from string", integer, " 8 ", false, int64(8)},
		{"int from integral float", integer, json.Number("2.0"), false, int64(2)},
		{"int from fraction", integer, json.Number("2.5"), false, nil},
		{"int from text", integer, "n/a", false, nil},
		{"int overflow", integer, json.Number("3000000000"), false, nil},
		{"bigint from exponent", bigint, json.Number("1.540344794796E12"), false, int64(1540344794796)},
		{"bigint blank", bigint, "", false, nil},
		{"double", double, json.Number("294.08608"), false, 294.08608},
		{"double from text", double, "not a number", false, nil},
		{"epoch millis", ts, json.Number("1541106106796"), true, time.Date(2018, 11, 1, 21, 1, 46, 796e6, time.UTC)},
		{"epoch millis garbage", ts, "soon", true, nil},
		{"text timestamp", ts, "2018-11-01 21:01:46", false, time.Date(2018, 11, 1, 21, 1, 46, 0, time.UTC)},
		{"text timestamp garbage", ts, "yesterday", false, nil},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, c.want, cleanValue(ddl.SQLite, c.col, c.in, c.millis))
		})
	}
}

func TestTruncateText_CountsPerDialect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dialect ddl.Dialect
		in      string
		want    string
	}{
		{ddl.Postgres, "abcdé", "abcdé"},
		{ddl.Postgres, "héllo wörld", "héllo"},
		{ddl.Postgres, "ab😀cd", "ab😀cd"},
		{ddl.Postgres, "ab😀cdef", "ab😀cd"},
		{ddl.MSSQL, "abcdé", "abcdé"},
		{ddl.MSSQL, "ab😀cd", "ab😀c"},
		{ddl.Redshift, "abcdé", "abcd"},
		{ddl.SQLite, "abcdé", "abcd"},
		{ddl.SQLite, "ab😀cd", "ab"},
		{ddl.Postgres, "short", "short"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, truncateText(c.dialect, c.in, 5), "%s %q", c.dialect, c.in)
	}

	col := ddl.ColumnDef{Name: "v", Type: ddl.Varchar, Length: 5}
	assert.Equal(t, "héllo", cleanValue(ddl.Postgres, col, "héllo wörld", false))
	assert.Equal(t, "héll", cleanValue(ddl.SQLite, col, "héllo wörld", false))
}

func TestStreamObjects_Shapes(t *testing.T) {
	t.Parallel()

	in := `{"a": 1}
{"a": 2}
[{"a": 3}, 7, {"a": 4}]
{"a": 5}`
	var got []string
	n, err := streamObjects(context.Background(), strings.NewReader(in), func(obj map[string]any) error {
		got = append(got, obj["a"].(json.Number).String())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)

	_, err = streamObjects(context.Background(), strings.NewReader(`{"a": 1} "scalar"`), func(map[string]any) error { return nil })
	assert.ErrorContains(t, err, "value 2")

	_, err = streamObjects(context.Background(), strings.NewReader(`{"a": `), func(map[string]any) error { return nil })
	assert.Error(t, err)

	n, err = streamObjects(context.Background(), strings.NewReader(""), func(map[string]any) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, n)
}
