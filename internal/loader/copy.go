package loader

import (
	"fmt"
	"strings"

	"sparkify/internal/catalog"
	"sparkify/internal/config"
	"sparkify/internal/ddl"
)

// Redshift COPY data-cleaning options shared by both staging tables.
const cleaningOptions = "TRUNCATECOLUMNS BLANKSASNULL EMPTYASNULL"

// AutoIgnoreCase is the JSON format argument that maps object keys to columns
// by case-insensitive name.
const AutoIgnoreCase = "auto ignorecase"

// Source describes where one staging table is loaded from.
type Source struct {
	Table    string
	Location string
	// JSONPaths is the location of a jsonpaths mapping file. Empty means the
	// table is mapped by name with AutoIgnoreCase.
	JSONPaths string
	// EpochMillis marks timestamp fields as milliseconds since the Unix epoch.
	EpochMillis bool
}

// Sources returns the staging sources for rec, in catalog order.
func Sources(rec config.Record) []Source {
	return []Source{
		{Table: catalog.StagingEvents, Location: rec.LogData, JSONPaths: rec.LogJSONPath, EpochMillis: true},
		{Table: catalog.StagingSongs, Location: rec.SongData},
	}
}

// CopyStatement renders the Redshift COPY for src. Every literal is checked
// against its expected shape before it is quoted into the statement, so a
// placeholder role or a mangled location is rejected here rather than by the
// cluster.
func CopyStatement(src Source, rec config.Record) (string, error) {
	var bad []string
	if !config.IsS3URI(src.Location) {
		bad = append(bad, fmt.Sprintf("location %q is not an s3:// URI", src.Location))
	}
	if src.JSONPaths != "" && !config.IsS3URI(src.JSONPaths) {
		bad = append(bad, fmt.Sprintf("jsonpaths %q is not an s3:// URI", src.JSONPaths))
	}
	if !config.IsRoleARN(rec.StorageRoleARN) {
		bad = append(bad, fmt.Sprintf("role %q is not a resolved IAM role ARN", rec.StorageRoleARN))
	}
	if !config.IsRegion(rec.Region) {
		bad = append(bad, fmt.Sprintf("region %q is not an AWS region", rec.Region))
	}
	if len(bad) > 0 {
		return "", fmt.Errorf("copy %s: %s", src.Table, strings.Join(bad, "; "))
	}

	d := ddl.Redshift
	format := AutoIgnoreCase
	if src.JSONPaths != "" {
		format = src.JSONPaths
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "COPY %s FROM %s\n", d.QuoteIdent(src.Table), d.QuoteLiteral(src.Location))
	fmt.Fprintf(&sb, "IAM_ROLE %s\n", d.QuoteLiteral(rec.StorageRoleARN))
	fmt.Fprintf(&sb, "REGION %s\n", d.QuoteLiteral(rec.Region))
	fmt.Fprintf(&sb, "FORMAT AS JSON %s\n", d.QuoteLiteral(format))
	if src.EpochMillis {
		sb.WriteString("TIMEFORMAT AS 'epochmillisecs'\n")
	}
	sb.WriteString(cleaningOptions)
	return sb.String(), nil
}
