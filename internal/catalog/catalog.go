// Package catalog is the fixed, ordered list of warehouse tables: two staging
// tables fed by the bulk loader, one fact table and four dimension tables fed
// by the transform engine.
//
// The catalog has no side effects. It only derives statements; executing them
// is the schema manager's job.
package catalog

import (
	"fmt"

	"sparkify/internal/ddl"
)

// Table names.
const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	Time          = "time"
)

// Kind classifies a table's role in the star schema.
type Kind string

const (
	KindStaging   Kind = "staging"
	KindFact      Kind = "fact"
	KindDimension Kind = "dimension"
)

// Table is one catalog entry.
type Table struct {
	Def      ddl.TableDef
	Kind     Kind
	Position int
}

// Name returns the table name.
func (t Table) Name() string { return t.Def.Name }

// Statement is a single DDL/DML statement bound to the table it targets.
type Statement struct {
	Table string
	SQL   string
}

// No foreign keys are declared anywhere, so creation order carries no
// cross-table constraint; the order below is the one used for both drop and
// create.
var tables = []Table{
	{Kind: KindStaging, Def: ddl.TableDef{
		Name: StagingEvents,
		Columns: []ddl.ColumnDef{
			{Name: "artist", Type: ddl.Varchar, Nullable: true},
			{Name: "auth", Type: ddl.Varchar, Length: 30, Nullable: true},
			{Name: "first_name", Type: ddl.Varchar, Nullable: true},
			{Name: "gender", Type: ddl.Varchar, Length: 2, Nullable: true},
			{Name: "item_in_session", Type: ddl.Int, Nullable: true},
			{Name: "last_name", Type: ddl.Varchar, Nullable: true},
			{Name: "length", Type: ddl.Double, Nullable: true},
			{Name: "level", Type: ddl.Varchar, Length: 15, Nullable: true},
			{Name: "location", Type: ddl.Varchar, Nullable: true},
			{Name: "method", Type: ddl.Varchar, Length: 8, Nullable: true},
			{Name: "page", Type: ddl.Varchar, Length: 20, Nullable: true},
			{Name: "registration", Type: ddl.BigInt, Nullable: true},
			{Name: "session_id", Type: ddl.Int, Nullable: true},
			{Name: "song", Type: ddl.Varchar, Nullable: true},
			{Name: "status", Type: ddl.Int, Nullable: true},
			{Name: "ts", Type: ddl.Timestamp, Nullable: true},
			{Name: "user_agent", Type: ddl.Varchar, Length: 512, Nullable: true},
			{Name: "user_id", Type: ddl.Int, Nullable: true},
		},
	}},
	{Kind: KindStaging, Def: ddl.TableDef{
		Name: StagingSongs,
		Columns: []ddl.ColumnDef{
			{Name: "artist_id", Type: ddl.Varchar, Length: 30, Nullable: true},
			{Name: "artist_latitude", Type: ddl.Double, Nullable: true},
			{Name: "artist_longitude", Type: ddl.Double, Nullable: true},
			{Name: "artist_location", Type: ddl.Varchar, Nullable: true},
			{Name: "artist_name", Type: ddl.Varchar, Nullable: true},
			{Name: "num_songs", Type: ddl.Int, Nullable: true},
			{Name: "song_id", Type: ddl.Varchar, Length: 30, Nullable: true},
			{Name: "title", Type: ddl.Varchar, Nullable: true},
			{Name: "duration", Type: ddl.Double, Nullable: true},
			{Name: "year", Type: ddl.Int, Nullable: true},
		},
	}},
	{Kind: KindFact, Def: ddl.TableDef{
		Name: Songplays,
		Columns: []ddl.ColumnDef{
			{Name: "songplay_id", Type: ddl.Int, Identity: true, PrimaryKey: true, SortKey: true, DistKey: true},
			{Name: "start_time", Type: ddl.Timestamp, Nullable: true},
			{Name: "user_id", Type: ddl.Int, Nullable: true},
			{Name: "level", Type: ddl.Varchar, Length: 15, Nullable: true},
			{Name: "song_id", Type: ddl.Varchar, Length: 30, Nullable: true},
			{Name: "artist_id", Type: ddl.Varchar, Length: 30, Nullable: true},
			{Name: "session_id", Type: ddl.Int, Nullable: true},
			{Name: "location", Type: ddl.Varchar, Nullable: true},
			{Name: "user_agent", Type: ddl.Varchar, Length: 512, Nullable: true},
		},
	}},
	{Kind: KindDimension, Def: ddl.TableDef{
		Name:      Users,
		DistStyle: ddl.DistAll,
		Columns: []ddl.ColumnDef{
			{Name: "user_id", Type: ddl.Int, SortKey: true},
			{Name: "first_name", Type: ddl.Varchar, Nullable: true},
			{Name: "last_name", Type: ddl.Varchar, Nullable: true},
			{Name: "gender", Type: ddl.Varchar, Length: 2, Nullable: true},
			{Name: "level", Type: ddl.Varchar, Length: 15, Nullable: true},
		},
	}},
	{Kind: KindDimension, Def: ddl.TableDef{
		Name:      Songs,
		DistStyle: ddl.DistAll,
		Columns: []ddl.ColumnDef{
			{Name: "song_id", Type: ddl.Varchar, Length: 30, SortKey: true},
			{Name: "title", Type: ddl.Varchar, Nullable: true},
			{Name: "artist_id", Type: ddl.Varchar, Length: 30, Nullable: true},
			{Name: "year", Type: ddl.Int, Nullable: true},
			{Name: "duration", Type: ddl.Double, Nullable: true},
		},
	}},
	{Kind: KindDimension, Def: ddl.TableDef{
		Name:      Artists,
		DistStyle: ddl.DistAll,
		Columns: []ddl.ColumnDef{
			{Name: "artist_id", Type: ddl.Varchar, Length: 30, SortKey: true},
			{Name: "name", Type: ddl.Varchar, Nullable: true},
			{Name: "location", Type: ddl.Varchar, Nullable: true},
			{Name: "latitude", Type: ddl.Double, Nullable: true},
			{Name: "longitude", Type: ddl.Double, Nullable: true},
		},
	}},
	{Kind: KindDimension, Def: ddl.TableDef{
		Name:      Time,
		DistStyle: ddl.DistAll,
		Columns: []ddl.ColumnDef{
			{Name: "time_id", Type: ddl.Int, Identity: true},
			{Name: "start_time", Type: ddl.Timestamp, SortKey: true},
			{Name: "hour", Type: ddl.Int},
			{Name: "day", Type: ddl.Int},
			{Name: "week", Type: ddl.Int},
			{Name: "month", Type: ddl.Int},
			{Name: "year", Type: ddl.Int},
			{Name: "weekday", Type: ddl.Int},
		},
	}},
}

// Tables returns the catalog in order. The returned slice is a copy.
func Tables() []Table {
	out := make([]Table, len(tables))
	for i, t := range tables {
		t.Position = i
		t.Def.Columns = append([]ddl.ColumnDef(nil), t.Def.Columns...)
		out[i] = t
	}
	return out
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name() == name {
			return t, true
		}
	}
	return Table{}, false
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Table {
	t, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("catalog: unknown table %q", name))
	}
	return t
}

// Staging returns the staging tables in catalog order.
func Staging() []Table { return filter(func(t Table) bool { return t.Kind == KindStaging }) }

// Analytics returns the fact and dimension tables in catalog order.
func Analytics() []Table { return filter(func(t Table) bool { return t.Kind != KindStaging }) }

func filter(keep func(Table) bool) []Table {
	var out []Table
	for _, t := range Tables() {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// DropStatements returns one idempotent DROP per table, in catalog order.
func DropStatements(d ddl.Dialect) ([]Statement, error) {
	out := make([]Statement, 0, len(tables))
	for _, t := range Tables() {
		sql, err := ddl.BuildDropTableSQL(d, t.Name())
		if err != nil {
			return nil, fmt.Errorf("catalog: drop %s: %w", t.Name(), err)
		}
		out = append(out, Statement{Table: t.Name(), SQL: sql})
	}
	return out, nil
}

// CreateStatements returns one idempotent CREATE per table, in catalog order.
func CreateStatements(d ddl.Dialect) ([]Statement, error) {
	out := make([]Statement, 0, len(tables))
	for _, t := range Tables() {
		sql, err := ddl.BuildCreateTableSQL(d, t.Def)
		if err != nil {
			return nil, fmt.Errorf("catalog: create %s: %w", t.Name(), err)
		}
		out = append(out, Statement{Table: t.Name(), SQL: sql})
	}
	return out, nil
}
