// Package config defines the run configuration record for the warehouse ETL
// and loads it from an INI file (config/dwh.cfg by default).
//
// A Record is a plain value. It is built once per run, validated, and passed
// explicitly to every component that needs it. Provisioning produces a
// Resolved value which is folded in with WithResolved, returning a new Record.
package config

import (
	"fmt"
	"strings"

	"sparkify/internal/ddl"
)

// DefaultPath is where the CLI looks for the INI file.
const DefaultPath = "config/dwh.cfg"

// Record holds every configuration value of a run. Field comments name the
// INI section.key they are read from.
type Record struct {
	Key    string // AWS.key
	Secret string // AWS.secret
	Region string // AWS.region

	// StorageRoleARN is the S3 read role used by COPY. IAM_ROLE.arn
	StorageRoleARN string

	ClusterType       string // CLUSTER.db_cluster_type
	NumNodes          string // CLUSTER.db_num_nodes
	NodeType          string // CLUSTER.db_node_type
	RoleName          string // CLUSTER.db_iam_role_name
	ClusterIdentifier string // CLUSTER.db_cluster_identifier
	DBName            string // CLUSTER.db_name
	DBUser            string // CLUSTER.db_user
	DBPassword        string // CLUSTER.db_password
	DBPort            string // CLUSTER.db_port
	Host              string // CLUSTER.host

	// ClusterRoleARN is the role attached to the cluster. CLUSTER.db_iam_role_arn
	ClusterRoleARN string

	LogData     string // S3.log_data
	LogJSONPath string // S3.log_jsonpath
	SongData    string // S3.song_data

	Warehouse string // WAREHOUSE.kind, empty means redshift
	SSLMode   string // WAREHOUSE.sslmode
	DSN       string // WAREHOUSE.dsn, overrides the discrete connection fields
}

// Resolved carries the values provisioning discovers at runtime.
type Resolved struct {
	StorageRoleARN string
	ClusterRoleARN string
	Host           string
	Port           string
}

// Dialect returns the warehouse kind. An empty Warehouse means Redshift.
// Unknown values are returned verbatim so validation can report them.
func (r Record) Dialect() ddl.Dialect {
	w := strings.ToLower(strings.TrimSpace(r.Warehouse))
	if w == "" {
		return ddl.Redshift
	}
	return ddl.Dialect(w)
}

// WithResolved returns a copy of r with the non-empty fields of res applied.
func (r Record) WithResolved(res Resolved) Record {
	if res.StorageRoleARN != "" {
		r.StorageRoleARN = res.StorageRoleARN
	}
	if res.ClusterRoleARN != "" {
		r.ClusterRoleARN = res.ClusterRoleARN
	}
	if res.Host != "" {
		r.Host = res.Host
	}
	if res.Port != "" {
		r.DBPort = res.Port
	}
	return r
}

const redacted = "[REDACTED]"

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// String renders r for logs. Secret, DBPassword and DSN are redacted and the
// access key id is truncated to its first four characters.
func (r Record) String() string {
	key := r.Key
	if len(key) > 4 {
		key = key[:4] + "****"
	}
	return fmt.Sprintf(
		"Record{warehouse=%s region=%s key=%s secret=%s storage_role=%s cluster=%s type=%s nodes=%s node_type=%s role_name=%s host=%s port=%s db=%s user=%s password=%s cluster_role=%s log_data=%s log_jsonpath=%s song_data=%s sslmode=%s dsn=%s}",
		r.Dialect(), r.Region, key, redact(r.Secret), r.StorageRoleARN,
		r.ClusterIdentifier, r.ClusterType, r.NumNodes, r.NodeType, r.RoleName,
		r.Host, r.DBPort, r.DBName, r.DBUser, redact(r.DBPassword), r.ClusterRoleARN,
		r.LogData, r.LogJSONPath, r.SongData, r.SSLMode, redact(r.DSN),
	)
}

// GoString keeps %#v from leaking secrets.
func (r Record) GoString() string { return r.String() }
