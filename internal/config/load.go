package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// field binds one INI section.key to a Record field.
type field struct {
	section string
	key     string
	ref     func(*Record) *string
}

// Path is the dotted name used in messages, e.g. "CLUSTER.db_port".
func (f field) Path() string { return f.section + "." + f.key }

var fields = []field{
	{"AWS", "key", func(r *Record) *string { return &r.Key }},
	{"AWS", "secret", func(r *Record) *string { return &r.Secret }},
	{"AWS", "region", func(r *Record) *string { return &r.Region }},
	{"IAM_ROLE", "arn", func(r *Record) *string { return &r.StorageRoleARN }},
	{"CLUSTER", "db_cluster_type", func(r *Record) *string { return &r.ClusterType }},
	{"CLUSTER", "db_num_nodes", func(r *Record) *string { return &r.NumNodes }},
	{"CLUSTER", "db_node_type", func(r *Record) *string { return &r.NodeType }},
	{"CLUSTER", "db_iam_role_name", func(r *Record) *string { return &r.RoleName }},
	{"CLUSTER", "db_cluster_identifier", func(r *Record) *string { return &r.ClusterIdentifier }},
	{"CLUSTER", "db_name", func(r *Record) *string { return &r.DBName }},
	{"CLUSTER", "db_user", func(r *Record) *string { return &r.DBUser }},
	{"CLUSTER", "db_password", func(r *Record) *string { return &r.DBPassword }},
	{"CLUSTER", "db_port", func(r *Record) *string { return &r.DBPort }},
	{"CLUSTER", "host", func(r *Record) *string { return &r.Host }},
	{"CLUSTER", "db_iam_role_arn", func(r *Record) *string { return &r.ClusterRoleARN }},
	{"S3", "log_data", func(r *Record) *string { return &r.LogData }},
	{"S3", "log_jsonpath", func(r *Record) *string { return &r.LogJSONPath }},
	{"S3", "song_data", func(r *Record) *string { return &r.SongData }},
	{"WAREHOUSE", "kind", func(r *Record) *string { return &r.Warehouse }},
	{"WAREHOUSE", "sslmode", func(r *Record) *string { return &r.SSLMode }},
	{"WAREHOUSE", "dsn", func(r *Record) *string { return &r.DSN }},
}

var loadOptions = ini.LoadOptions{
	// Section and key names are case-insensitive: KEY, key and Key are one key.
	Insensitive: true,
	// Passwords may contain '#' or ';'. Only " #" and " ;" start a comment.
	SpaceBeforeInlineComment: true,
}

// Load reads the INI file at path into a Record. Missing keys are left
// empty; Validate reports them.
func Load(path string) (Record, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return Record{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromFile(f), nil
}

// Parse reads INI content from data.
func Parse(data []byte) (Record, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Record{}, fmt.Errorf("config: parse: %w", err)
	}
	return fromFile(f), nil
}

func fromFile(f *ini.File) Record {
	var rec Record
	for _, fd := range fields {
		*fd.ref(&rec) = unquote(f.Section(fd.section).Key(fd.key).String())
	}
	if rec.SSLMode == "" {
		rec.SSLMode = "prefer"
	}
	return rec
}

// unquote trims space and one leftover pair of single quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// SaveResolved writes the non-empty fields of res back into the INI file at
// path, preserving every other section and key.
func SaveResolved(path string, res Resolved) error {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	set := func(section, key, value string) {
		if value != "" {
			f.Section(section).Key(key).SetValue(value)
		}
	}
	set("IAM_ROLE", "arn", res.StorageRoleARN)
	set("CLUSTER", "db_iam_role_arn", res.ClusterRoleARN)
	set("CLUSTER", "host", res.Host)
	set("CLUSTER", "db_port", res.Port)
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("config: save %s: %w", path, err)
	}
	return nil
}
