package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"sparkify/internal/ddl"
	"sparkify/internal/etlerr"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is the INI section.key, e.g.
// "CLUSTER.db_port".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var (
	roleARNPattern = regexp.MustCompile(`^arn:aws[-a-z]*:iam::\d{12}:role/[\w+=,.@/-]+$`)
	s3URIPattern   = regexp.MustCompile(`^s3://[a-z0-9][a-z0-9.-]{1,61}[a-z0-9](/\S*)?$`)
	regionPattern  = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]?)?-[a-z]+-\d$`)
)

// IsRoleARN reports whether s is an IAM role ARN.
func IsRoleARN(s string) bool { return roleARNPattern.MatchString(s) }

// IsS3URI reports whether s is an s3://bucket[/key] URI.
func IsS3URI(s string) bool { return s3URIPattern.MatchString(s) }

// IsRegion reports whether s looks like an AWS region name.
func IsRegion(s string) bool { return regionPattern.MatchString(s) }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their INI path rather than the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("ini")
	})
	regex := func(match func(string) bool) validator.Func {
		return func(fl validator.FieldLevel) bool { return match(fl.Field().String()) }
	}
	_ = v.RegisterValidation("rolearn", regex(IsRoleARN))
	_ = v.RegisterValidation("s3uri", regex(IsS3URI))
	_ = v.RegisterValidation("region", regex(IsRegion))
	_ = v.RegisterValidation("port", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n > 0 && n < 65536
	})
	return v
}

// Each profile lists what one use of the record needs. Tags name the INI
// path so validator errors map straight onto Issues.

type awsProfile struct {
	Key    string `ini:"AWS.key" validate:"required"`
	Secret string `ini:"AWS.secret" validate:"required"`
	Region string `ini:"AWS.region" validate:"required,region"`
}

type clusterProfile struct {
	ClusterType       string `ini:"CLUSTER.db_cluster_type" validate:"required,oneof=single-node multi-node"`
	NumNodes          string `ini:"CLUSTER.db_num_nodes" validate:"required,number"`
	NodeType          string `ini:"CLUSTER.db_node_type" validate:"required"`
	RoleName          string `ini:"CLUSTER.db_iam_role_name" validate:"required"`
	ClusterIdentifier string `ini:"CLUSTER.db_cluster_identifier" validate:"required"`
	DBName            string `ini:"CLUSTER.db_name" validate:"required"`
	DBUser            string `ini:"CLUSTER.db_user" validate:"required"`
	DBPassword        string `ini:"CLUSTER.db_password" validate:"required"`
	DBPort            string `ini:"CLUSTER.db_port" validate:"required,port"`
}

type redshiftProfile struct {
	awsProfile
	clusterProfile
	Host           string `ini:"CLUSTER.host" validate:"required,hostname_rfc1123|ip"`
	StorageRoleARN string `ini:"IAM_ROLE.arn" validate:"required,rolearn"`
	ClusterRoleARN string `ini:"CLUSTER.db_iam_role_arn" validate:"required,rolearn"`
	LogData        string `ini:"S3.log_data" validate:"required,s3uri"`
	LogJSONPath    string `ini:"S3.log_jsonpath" validate:"required,s3uri"`
	SongData       string `ini:"S3.song_data" validate:"required,s3uri"`
}

type serverProfile struct {
	Host   string `ini:"CLUSTER.host" validate:"required"`
	DBName string `ini:"CLUSTER.db_name" validate:"required"`
	DBUser string `ini:"CLUSTER.db_user" validate:"required"`
	DBPort string `ini:"CLUSTER.db_port" validate:"omitempty,port"`
}

type fileProfile struct {
	DBName string `ini:"CLUSTER.db_name" validate:"required"`
}

type locationsProfile struct {
	LogData     string `ini:"S3.log_data" validate:"required"`
	LogJSONPath string `ini:"S3.log_jsonpath" validate:"required"`
	SongData    string `ini:"S3.song_data" validate:"required"`
}

type provisionProfile struct {
	awsProfile
	clusterProfile
}

// Validate checks that rec is complete enough to run the ETL against its
// warehouse. It returns every finding; callers decide whether warnings are
// fatal. Check turns the errors into a single ConfigInvalid error.
func Validate(rec Record) []Issue {
	var issues []Issue

	d := rec.Dialect()
	if _, err := ddl.ParseDialect(string(d)); err != nil {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "WAREHOUSE.kind",
			Message:  fmt.Sprintf("unknown warehouse %q; want one of %v", rec.Warehouse, ddl.Dialects),
		})
	}

	hasDSN := strings.TrimSpace(rec.DSN) != ""
	switch d {
	case ddl.Redshift:
		issues = append(issues, check(redshiftProfile{
			awsProfile:     awsOf(rec),
			clusterProfile: clusterOf(rec),
			Host:           rec.Host,
			StorageRoleARN: rec.StorageRoleARN,
			ClusterRoleARN: rec.ClusterRoleARN,
			LogData:        rec.LogData,
			LogJSONPath:    rec.LogJSONPath,
			SongData:       rec.SongData,
		})...)
		if strings.EqualFold(rec.SSLMode, "disable") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "WAREHOUSE.sslmode",
				Message:  "TLS is disabled for a Redshift connection",
			})
		}
		if rec.ClusterType == "single-node" && rec.NumNodes != "" && rec.NumNodes != "1" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "CLUSTER.db_num_nodes",
				Message:  fmt.Sprintf("db_num_nodes=%s is ignored for a single-node cluster", rec.NumNodes),
			})
		}
		return issues

	case ddl.Postgres, ddl.MSSQL:
		if !hasDSN {
			issues = append(issues, check(serverProfile{
				Host:   rec.Host,
				DBName: rec.DBName,
				DBUser: rec.DBUser,
				DBPort: rec.DBPort,
			})...)
		}
	case ddl.SQLite:
		if !hasDSN {
			issues = append(issues, check(fileProfile{DBName: rec.DBName})...)
		}
	}
	issues = append(issues, check(locationsProfile{
		LogData:     rec.LogData,
		LogJSONPath: rec.LogJSONPath,
		SongData:    rec.SongData,
	})...)
	return issues
}

// ValidateProvisioning checks the fields needed to create the IAM role and
// the cluster. Host and role ARNs are outputs of provisioning and are not
// required.
func ValidateProvisioning(rec Record) []Issue {
	return check(provisionProfile{awsProfile: awsOf(rec), clusterProfile: clusterOf(rec)})
}

// Check returns a ConfigInvalid error listing every error-severity issue, or
// nil when there are none.
func Check(issues []Issue) error {
	var msgs []string
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return etlerr.Errorf(etlerr.KindConfigInvalid, "%d invalid field(s): %s", len(msgs), strings.Join(msgs, "; "))
}

func awsOf(rec Record) awsProfile {
	return awsProfile{Key: rec.Key, Secret: rec.Secret, Region: rec.Region}
}

func clusterOf(rec Record) clusterProfile {
	return clusterProfile{
		ClusterType:       rec.ClusterType,
		NumNodes:          rec.NumNodes,
		NodeType:          rec.NodeType,
		RoleName:          rec.RoleName,
		ClusterIdentifier: rec.ClusterIdentifier,
		DBName:            rec.DBName,
		DBUser:            rec.DBUser,
		DBPassword:        rec.DBPassword,
		DBPort:            rec.DBPort,
	}
}

// check runs the validator over a profile and maps failures to Issues.
func check(profile any) []Issue {
	err := validate.Struct(profile)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "config", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     fe.Field(),
			Message:  formatFieldError(fe),
		})
	}
	return issues
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "number":
		return fmt.Sprintf("%q is not a number", fe.Value())
	case "port":
		return fmt.Sprintf("%q is not a TCP port", fe.Value())
	case "rolearn":
		return fmt.Sprintf("%q is not an IAM role ARN (arn:aws:iam::<account>:role/<name>)", fe.Value())
	case "s3uri":
		return fmt.Sprintf("%q is not an s3://bucket/prefix URI", fe.Value())
	case "region":
		return fmt.Sprintf("%q is not an AWS region", fe.Value())
	case "hostname_rfc1123|ip":
		return fmt.Sprintf("%q is not a host name or IP address", fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
