package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityTable() TableDef {
	return TableDef{
		Name: "songplays",
		Columns: []ColumnDef{
			{Name: "songplay_id", Type: Int, Identity: true, PrimaryKey: true, SortKey: true, DistKey: true},
			{Name: "start_time", Type: Timestamp, Nullable: true},
			{Name: "song_id", Type: Varchar, Length: 30, Nullable: true},
		},
	}
}

// TestBuildCreateTableSQL verifies the rendered statement for each dialect and
// the validation errors for malformed definitions.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		dialect     Dialect
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty name returns error",
			dialect:     Postgres,
			def:         TableDef{Columns: []ColumnDef{{Name: "id", Type: Int}}},
			errContains: "table name must not be empty",
		},
		{
			name:        "no columns returns error",
			dialect:     Postgres,
			def:         TableDef{Name: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			dialect:     Postgres,
			def:         TableDef{Name: "t", Columns: []ColumnDef{{Type: Int}}},
			errContains: "column with empty name",
		},
		{
			name:        "unknown type returns error",
			dialect:     Postgres,
			def:         TableDef{Name: "t", Columns: []ColumnDef{{Name: "x", Type: "blob"}}},
			errContains: "unsupported type",
		},
		{
			name:        "identity must be integer",
			dialect:     Redshift,
			def:         TableDef{Name: "t", Columns: []ColumnDef{{Name: "x", Type: Varchar, Identity: true}}},
			errContains: "must be an integer type",
		},
		{
			name:    "redshift renders identity, keys and diststyle",
			dialect: Redshift,
			def: TableDef{
				Name:      "users",
				DistStyle: DistAll,
				Columns: []ColumnDef{
					{Name: "user_id", Type: Int, SortKey: true},
					{Name: "level", Type: Varchar, Length: 15, Nullable: true},
				},
			},
			wantSQL: "CREATE TABLE IF NOT EXISTS \"users\" (\n  \"user_id\" INTEGER SORTKEY NOT NULL,\n  \"level\" VARCHAR(15)\n)\nDISTSTYLE ALL;",
		},
		{
			name:    "redshift identity primary key",
			dialect: Redshift,
			def:     identityTable(),
			wantSQL: "CREATE TABLE IF NOT EXISTS \"songplays\" (\n  \"songplay_id\" INTEGER IDENTITY(0,1) DISTKEY SORTKEY NOT NULL,\n  \"start_time\" TIMESTAMP,\n  \"song_id\" VARCHAR(30),\n  PRIMARY KEY (\"songplay_id\")\n);",
		},
		{
			name:    "postgres identity ignores physical hints",
			dialect: Postgres,
			def:     identityTable(),
			wantSQL: "CREATE TABLE IF NOT EXISTS \"songplays\" (\n  \"songplay_id\" INTEGER GENERATED BY DEFAULT AS IDENTITY NOT NULL,\n  \"start_time\" TIMESTAMP,\n  \"song_id\" VARCHAR(30),\n  PRIMARY KEY (\"songplay_id\")\n);",
		},
		{
			name:    "sqlite identity becomes autoincrement primary key",
			dialect: SQLite,
			def:     identityTable(),
			wantSQL: "CREATE TABLE IF NOT EXISTS \"songplays\" (\n  \"songplay_id\" INTEGER PRIMARY KEY AUTOINCREMENT,\n  \"start_time\" TEXT,\n  \"song_id\" TEXT\n);",
		},
		{
			name:    "sqlite identity cannot mix with other primary keys",
			dialect: SQLite,
			def: TableDef{Name: "t", Columns: []ColumnDef{
				{Name: "id", Type: Int, Identity: true},
				{Name: "k", Type: Varchar, PrimaryKey: true},
			}},
			errContains: "mixes an identity column",
		},
		{
			name:    "mssql uses an object guard and brackets",
			dialect: MSSQL,
			def:     identityTable(),
			wantSQL: "IF OBJECT_ID(N'songplays', N'U') IS NULL\nCREATE TABLE [songplays] (\n  [songplay_id] INT IDENTITY(0,1) NOT NULL,\n  [start_time] DATETIME2,\n  [song_id] NVARCHAR(30),\n  PRIMARY KEY ([songplay_id])\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.dialect, tt.def)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
		})
	}
}

func TestBuildDropTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildDropTableSQL(Redshift, "time")
	require.NoError(t, err)
	assert.Equal(t, `DROP TABLE IF EXISTS "time";`, got)

	got, err = BuildDropTableSQL(MSSQL, "time")
	require.NoError(t, err)
	assert.Equal(t, `DROP TABLE IF EXISTS [time];`, got)

	_, err = BuildDropTableSQL(Postgres, " ")
	assert.Error(t, err)

	_, err = BuildDropTableSQL(Dialect("oracle"), "t")
	assert.Error(t, err)
}

func TestDialect_Quoting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"we""ird"`, Postgres.QuoteIdent(`we"ird`))
	assert.Equal(t, `[we]]ird]`, MSSQL.QuoteIdent(`we]ird`))
	assert.Equal(t, `'O''Brien'`, Redshift.QuoteLiteral("O'Brien"))
	assert.Equal(t, `N'x'`, MSSQL.QuoteLiteral("x"))
}

func TestColumnDef_MaxBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultVarcharLength, ColumnDef{Type: Varchar}.MaxBytes())
	assert.Equal(t, 15, ColumnDef{Type: Varchar, Length: 15}.MaxBytes())
	assert.Equal(t, 0, ColumnDef{Type: Int}.MaxBytes())
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	d, err := ParseDialect(" sqlite ")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
