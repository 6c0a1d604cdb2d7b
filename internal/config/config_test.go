package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkify/internal/ddl"
	"sparkify/internal/etlerr"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func loadFixture(t *testing.T) Record {
	t.Helper()
	rec, err := Load(filepath.Join("testdata", "dwh.cfg"))
	require.NoError(t, err)
	return rec
}

func TestLoad_Fixture(t *testing.T) {
	t.Parallel()

	rec := loadFixture(t)
	assert.Equal(t, "AKIAEXAMPLEKEY", rec.Key)
	assert.Equal(t, "us-west-2", rec.Region)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhS3ReadRole", rec.StorageRoleARN)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhClusterRole", rec.ClusterRoleARN)
	assert.Equal(t, "Passw0rd#1", rec.DBPassword)
	assert.Equal(t, "5439", rec.DBPort)
	assert.Equal(t, "s3://udacity-dend/log_data", rec.LogData)
	assert.Equal(t, "s3://udacity-dend/log_json_path.json", rec.LogJSONPath)
	assert.Equal(t, ddl.Redshift, rec.Dialect())
	assert.Equal(t, "prefer", rec.SSLMode)
	assert.Empty(t, Validate(rec))
}

// TestParse_KeysAreCaseInsensitive checks that upper, lower and mixed case
// spellings of the same key are one key.
func TestParse_KeysAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"[AWS]\nKEY = k\nSECRET = s\n[s3]\nLOG_DATA = s3://b/l\n",
		"[aws]\nkey = k\nsecret = s\n[S3]\nlog_data = s3://b/l\n",
		"[Aws]\nKey = k\nSecret = s\n[S3]\nLog_Data = s3://b/l\n",
	} {
		rec, err := Parse([]byte(src))
		require.NoError(t, err)
		assert.Equal(t, "k", rec.Key)
		assert.Equal(t, "s", rec.Secret)
		assert.Equal(t, "s3://b/l", rec.LogData)
	}
}

func TestParse_WarehouseSection(t *testing.T) {
	t.Parallel()

	rec, err := Parse([]byte("[WAREHOUSE]\nkind = SQLite\nsslmode = disable\n[CLUSTER]\ndb_name = /tmp/dwh.db\n"))
	require.NoError(t, err)
	assert.Equal(t, ddl.SQLite, rec.Dialect())
	assert.Equal(t, "disable", rec.SSLMode)
	assert.Equal(t, "/tmp/dwh.db", rec.DBName)
}

func TestValidate_RedshiftMissingFields(t *testing.T) {
	t.Parallel()

	rec := loadFixture(t)
	rec.Secret = ""
	rec.Host = ""
	rec.SongData = ""

	issues := Validate(rec)
	require.Len(t, issues, 3)
	assert.True(t, hasIssue(issues, SeverityError, "AWS.secret", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "CLUSTER.host", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "S3.song_data", "must not be empty"))

	err := Check(issues)
	require.Error(t, err)
	assert.True(t, errors.Is(err, etlerr.ErrConfigInvalid))
	for _, p := range []string{"AWS.secret", "CLUSTER.host", "S3.song_data"} {
		assert.Contains(t, err.Error(), p)
	}
}

func TestValidate_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Record)
		path   string
		msg    string
	}{
		{"placeholder role arn", func(r *Record) { r.StorageRoleARN = "<IAM_ROLE_ARN>" }, "IAM_ROLE.arn", "not an IAM role ARN"},
		{"quoted injection in arn", func(r *Record) { r.StorageRoleARN = "arn:aws:iam::123456789012:role/x' --" }, "IAM_ROLE.arn", "not an IAM role ARN"},
		{"non numeric port", func(r *Record) { r.DBPort = "fifty" }, "CLUSTER.db_port", "not a TCP port"},
		{"port out of range", func(r *Record) { r.DBPort = "70000" }, "CLUSTER.db_port", "not a TCP port"},
		{"bad cluster type", func(r *Record) { r.ClusterType = "huge" }, "CLUSTER.db_cluster_type", "one of"},
		{"non numeric nodes", func(r *Record) { r.NumNodes = "four" }, "CLUSTER.db_num_nodes", "not a number"},
		{"bad region", func(r *Record) { r.Region = "us west 2" }, "AWS.region", "not an AWS region"},
		{"log data not s3", func(r *Record) { r.LogData = "/data/log_data" }, "S3.log_data", "s3://"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := loadFixture(t)
			tt.mutate(&rec)
			issues := Validate(rec)
			assert.Truef(t, hasIssue(issues, SeverityError, tt.path, tt.msg), "issues: %+v", issues)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()

	rec := loadFixture(t)
	rec.ClusterType = "single-node"
	rec.SSLMode = "disable"

	issues := Validate(rec)
	assert.True(t, hasIssue(issues, SeverityWarning, "CLUSTER.db_num_nodes", "ignored"))
	assert.True(t, hasIssue(issues, SeverityWarning, "WAREHOUSE.sslmode", "TLS"))
	assert.NoError(t, Check(issues), "warnings alone must not fail the run")
}

func TestValidate_LocalWarehouses(t *testing.T) {
	t.Parallel()

	locations := Record{LogData: "testdata/log_data", LogJSONPath: "testdata/log_json_path.json", SongData: "testdata/song_data"}

	sqlite := locations
	sqlite.Warehouse = "sqlite"
	sqlite.DBName = "dwh.db"
	assert.Empty(t, Validate(sqlite))

	sqlite.DBName = ""
	assert.True(t, hasIssue(Validate(sqlite), SeverityError, "CLUSTER.db_name", "must not be empty"))

	sqlite.DSN = "file::memory:"
	assert.Empty(t, Validate(sqlite))

	pg := locations
	pg.Warehouse = "postgres"
	issues := Validate(pg)
	assert.True(t, hasIssue(issues, SeverityError, "CLUSTER.host", "must not be empty"))
	assert.True(t, hasIssue(issues, SeverityError, "CLUSTER.db_user", "must not be empty"))
	assert.False(t, hasIssue(issues, SeverityError, "AWS.key", ""), "AWS credentials are not needed locally")

	pg.Host, pg.DBName, pg.DBUser = "localhost", "dwh", "etl"
	assert.Empty(t, Validate(pg))

	pg.SongData = ""
	assert.True(t, hasIssue(Validate(pg), SeverityError, "S3.song_data", "must not be empty"))
}

func TestValidate_UnknownWarehouse(t *testing.T) {
	t.Parallel()

	issues := Validate(Record{Warehouse: "oracle"})
	require.Len(t, issues, 1)
	assert.Equal(t, "WAREHOUSE.kind", issues[0].Path)
}

func TestValidateProvisioning(t *testing.T) {
	t.Parallel()

	rec := loadFixture(t)
	rec.Host = ""
	rec.StorageRoleARN = ""
	rec.ClusterRoleARN = ""
	assert.Empty(t, ValidateProvisioning(rec))

	rec.RoleName = ""
	assert.True(t, hasIssue(ValidateProvisioning(rec), SeverityError, "CLUSTER.db_iam_role_name", "must not be empty"))
}

func TestRecord_StringRedactsSecrets(t *testing.T) {
	t.Parallel()

	rec := loadFixture(t)
	rec.DSN = "postgres://u:hunter2@h/db"
	s := rec.String()
	assert.NotContains(t, s, "example/secret+key")
	assert.NotContains(t, s, "Passw0rd#1")
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "AKIAEXAMPLEKEY")
	assert.Contains(t, s, "AKIA****")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, s, rec.GoString())
}

func TestRecord_WithResolvedCopies(t *testing.T) {
	t.Parallel()

	rec := Record{Host: "old", DBPort: "5439"}
	got := rec.WithResolved(Resolved{
		StorageRoleARN: "arn:aws:iam::123456789012:role/a",
		Host:           "new",
	})
	assert.Equal(t, "old", rec.Host)
	assert.Empty(t, rec.StorageRoleARN)
	assert.Equal(t, "new", got.Host)
	assert.Equal(t, "5439", got.DBPort)
	assert.Equal(t, "arn:aws:iam::123456789012:role/a", got.StorageRoleARN)
}

func TestSaveResolved(t *testing.T) {
	t.Parallel()

	src, err := os.ReadFile(filepath.Join("testdata", "dwh.cfg"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "dwh.cfg")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	require.NoError(t, SaveResolved(path, Resolved{
		Host:           "new.host.example.com",
		ClusterRoleARN: "arn:aws:iam::123456789012:role/other",
	}))

	rec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new.host.example.com", rec.Host)
	assert.Equal(t, "arn:aws:iam::123456789012:role/other", rec.ClusterRoleARN)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhS3ReadRole", rec.StorageRoleARN, "empty resolved fields leave the file alone")
	assert.Equal(t, "Passw0rd#1", rec.DBPassword)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.cfg"))
	assert.Error(t, err)
}

func TestPatterns(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRoleARN("arn:aws:iam::123456789012:role/service-role/dwh"))
	assert.True(t, IsRoleARN("arn:aws-us-gov:iam::123456789012:role/dwh"))
	assert.False(t, IsRoleARN("arn:aws:iam::1234:role/dwh"))
	assert.True(t, IsS3URI("s3://udacity-dend/log_data"))
	assert.True(t, IsS3URI("s3://udacity-dend"))
	assert.False(t, IsS3URI("s3://bucket/with space"))
	assert.False(t, IsS3URI("https://udacity-dend/log_data"))
	assert.True(t, IsRegion("us-west-2"))
	assert.True(t, IsRegion("us-gov-west-1"))
	assert.False(t, IsRegion("west"))
}
