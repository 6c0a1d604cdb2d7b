package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/ddl"
)

func TestTables_Order(t *testing.T) {
	t.Parallel()

	var names []string
	for i, tb := range Tables() {
		assert.Equal(t, i, tb.Position)
		names = append(names, tb.Name())
	}
	assert.Equal(t, []string{StagingEvents, StagingSongs, Songplays, Users, Songs, Artists, Time}, names)
}

func TestTables_ReturnsCopy(t *testing.T) {
	t.Parallel()

	a := Tables()
	a[0].Def.Columns[0].Name = "mutated"
	b := Tables()
	assert.Equal(t, "artist", b[0].Def.Columns[0].Name)
}

func TestStagingAndAnalytics(t *testing.T) {
	t.Parallel()

	require.Len(t, Staging(), 2)
	require.Len(t, Analytics(), 5)
	assert.Equal(t, KindFact, Analytics()[0].Kind)
}

func TestStatements_EveryDialect(t *testing.T) {
	t.Parallel()

	for _, d := range ddl.Dialects {
		d := d
		t.Run(string(d), func(t *testing.T) {
			t.Parallel()

			drops, err := DropStatements(d)
			require.NoError(t, err)
			creates, err := CreateStatements(d)
			require.NoError(t, err)
			require.Len(t, drops, len(Tables()))
			require.Len(t, creates, len(Tables()))

			for i, tb := range Tables() {
				assert.Equal(t, tb.Name(), drops[i].Table)
				assert.Equal(t, tb.Name(), creates[i].Table)
				assert.Contains(t, drops[i].SQL, "IF EXISTS")
				if d == ddl.MSSQL {
					assert.True(t, strings.HasPrefix(creates[i].SQL, "IF OBJECT_ID("))
				} else {
					assert.Contains(t, creates[i].SQL, "IF NOT EXISTS")
				}
			}
		})
	}
}

func TestCatalog_CanonicalNames(t *testing.T) {
	t.Parallel()

	_, ok := Lookup("songplay")
	assert.False(t, ok, "the fact table is named songplays")

	artists := MustLookup(Artists)
	_, ok = artists.Def.Column("longitude")
	assert.True(t, ok)

	assert.Panics(t, func() { MustLookup("staging_eventes") })
}

func TestCatalog_StagingColumnsNullable(t *testing.T) {
	t.Parallel()

	for _, tb := range Staging() {
		for _, c := range tb.Def.Columns {
			assert.Truef(t, c.Nullable, "%s.%s must accept NULL", tb.Name(), c.Name)
		}
	}
}
