package transform

import (
	"fmt"
	"strings"

	"sparkify/internal/catalog"
	"sparkify/internal/ddl"
)

// calendar renders one calendar field of a timestamp expression.
type calendar func(field, expr string) string

// Calendar fields of the time table, in column order.
var calendarFields = []string{"hour", "day", "week", "month", "year", "weekday"}

func calendarFor(d ddl.Dialect) (calendar, error) {
	switch d {
	case ddl.Redshift, ddl.Postgres:
		return func(field, expr string) string {
			unit := strings.ToUpper(field)
			if field == "weekday" {
				unit = "DOW"
			}
			return fmt.Sprintf("CAST(EXTRACT(%s FROM %s) AS INTEGER)", unit, expr)
		}, nil
	case ddl.SQLite:
		formats := map[string]string{
			"hour": "%H", "day": "%d", "week": "%V", "month": "%m", "year": "%Y", "weekday": "%w",
		}
		return func(field, expr string) string {
			return fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER)", formats[field], expr)
		}, nil
	case ddl.MSSQL:
		return func(field, expr string) string {
			switch field {
			case "week":
				return fmt.Sprintf("DATEPART(ISO_WEEK, %s)", expr)
			case "weekday":
				// 0 = Sunday whatever DATEFIRST is set to.
				return fmt.Sprintf("(DATEPART(WEEKDAY, %s) + @@DATEFIRST - 1) %% 7", expr)
			}
			return fmt.Sprintf("DATEPART(%s, %s)", strings.ToUpper(field), expr)
		}, nil
	}
	return nil, fmt.Errorf("transform: unknown dialect %q", d)
}

// Statements returns the five analytics inserts for d in execution order:
// songplays, users, songs, artists, time.
func Statements(d ddl.Dialect) ([]catalog.Statement, error) {
	cal, err := calendarFor(d)
	if err != nil {
		return nil, err
	}
	q := d.QuoteIdent
	col := func(alias, name string) string { return alias + "." + q(name) }
	lit := d.QuoteLiteral

	insert := func(table string, cols []string) string {
		return fmt.Sprintf("INSERT INTO %s (%s)\n", q(table), strings.Join(d.QuoteIdents(cols), ", "))
	}

	var out []catalog.Statement

	out = append(out, catalog.Statement{
		Table: catalog.Songplays,
		SQL: insert(catalog.Songplays, []string{
			"start_time", "user_id", "level", "song_id", "artist_id", "session_id", "location", "user_agent",
		}) + fmt.Sprintf(`SELECT DISTINCT %s, %s, %s, %s, %s, %s, %s, %s
FROM %s se
JOIN %s ss ON %s = %s AND %s = %s
WHERE %s = %s AND %s IS NOT NULL`,
			col("se", "ts"), col("se", "user_id"), col("se", "level"), col("ss", "song_id"),
			col("ss", "artist_id"), col("se", "session_id"), col("se", "location"), col("se", "user_agent"),
			q(catalog.StagingEvents),
			q(catalog.StagingSongs), col("se", "song"), col("ss", "title"), col("se", "artist"), col("ss", "artist_name"),
			col("se", "page"), lit("NextSong"), col("se", "user_id"),
		),
	})

	out = append(out, catalog.Statement{
		Table: catalog.Users,
		SQL: insert(catalog.Users, []string{"user_id", "first_name", "last_name", "gender", "level"}) +
			fmt.Sprintf("SELECT DISTINCT %s, %s, %s, %s, %s\nFROM %s se\nWHERE %s IS NOT NULL",
				col("se", "user_id"), col("se", "first_name"), col("se", "last_name"), col("se", "gender"), col("se", "level"),
				q(catalog.StagingEvents), col("se", "user_id")),
	})

	out = append(out, catalog.Statement{
		Table: catalog.Songs,
		SQL: insert(catalog.Songs, []string{"song_id", "title", "artist_id", "year", "duration"}) +
			fmt.Sprintf("SELECT DISTINCT %s, %s, %s, %s, %s\nFROM %s ss\nWHERE %s IS NOT NULL",
				col("ss", "song_id"), col("ss", "title"), col("ss", "artist_id"), col("ss", "year"), col("ss", "duration"),
				q(catalog.StagingSongs), col("ss", "song_id")),
	})

	out = append(out, catalog.Statement{
		Table: catalog.Artists,
		SQL: insert(catalog.Artists, []string{"artist_id", "name", "location", "latitude", "longitude"}) +
			fmt.Sprintf("SELECT DISTINCT %s, %s, %s, %s, %s\nFROM %s ss\nWHERE %s IS NOT NULL",
				col("ss", "artist_id"), col("ss", "artist_name"), col("ss", "artist_location"),
				col("ss", "artist_latitude"), col("ss", "artist_longitude"),
				q(catalog.StagingSongs), col("ss", "artist_id")),
	})

	ts := col("se", "ts")
	parts := make([]string, 0, len(calendarFields)+1)
	parts = append(parts, ts)
	for _, f := range calendarFields {
		parts = append(parts, cal(f, ts))
	}
	out = append(out, catalog.Statement{
		Table: catalog.Time,
		SQL: insert(catalog.Time, append([]string{"start_time"}, calendarFields...)) +
			fmt.Sprintf("SELECT DISTINCT %s\nFROM %s se\nWHERE %s IS NOT NULL",
				strings.Join(parts, ", "), q(catalog.StagingEvents), ts),
	})

	return out, nil
}
