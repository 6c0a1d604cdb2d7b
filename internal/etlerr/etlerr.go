// Package etlerr defines the error taxonomy shared by the warehouse pipeline.
//
// Every failure surfaced by the core carries a Kind plus enough context
// (phase, table, statement) to diagnose it without re-running with verbose
// tracing. Callers match on kinds with errors.Is against the exported
// sentinels and extract context with errors.As:
//
//	var e *etlerr.Error
//	if errors.Is(err, etlerr.ErrBulkLoadFailed) && errors.As(err, &e) {
//	    log.Printf("load of %s failed", e.Table)
//	}
package etlerr

import (
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfigInvalid           Kind = "ConfigInvalid"
	KindSchemaOperationFailed   Kind = "SchemaOperationFailed"
	KindBulkLoadFailed          Kind = "BulkLoadFailed"
	KindTransformFailed         Kind = "TransformFailed"
	KindConnectionReleaseFailed Kind = "ConnectionReleaseFailed"
)

// Sentinels for errors.Is matching. An *Error matches the sentinel of its Kind.
var (
	ErrConfigInvalid           = &Error{Kind: KindConfigInvalid}
	ErrSchemaOperationFailed   = &Error{Kind: KindSchemaOperationFailed}
	ErrBulkLoadFailed          = &Error{Kind: KindBulkLoadFailed}
	ErrTransformFailed         = &Error{Kind: KindTransformFailed}
	ErrConnectionReleaseFailed = &Error{Kind: KindConnectionReleaseFailed}
)

// maxStatementLen bounds how much SQL text is echoed into error messages.
const maxStatementLen = 160

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	// Phase is the pipeline step that failed, e.g. "drop", "create", "copy".
	Phase string
	// Table is the table the failing statement targeted, if any.
	Table string
	// Statement is the SQL text that failed, if any.
	Statement string
	// Err is the underlying cause.
	Err error
}

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, phase, table, statement string, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Table: table, Statement: statement, Err: err}
}

// Errorf returns an *Error of the given kind with a formatted cause and no
// statement context.
func Errorf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, a...)}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Phase != "" {
		sb.WriteString(" phase=")
		sb.WriteString(e.Phase)
	}
	if e.Table != "" {
		sb.WriteString(" table=")
		sb.WriteString(e.Table)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Statement != "" {
		sb.WriteString(" [sql: ")
		sb.WriteString(Abbreviate(e.Statement))
		sb.WriteString("]")
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil && t.Table == "" && t.Phase == ""
}

// Abbreviate collapses whitespace in a SQL statement and truncates it for
// inclusion in logs and error messages.
func Abbreviate(stmt string) string {
	s := strings.Join(strings.Fields(stmt), " ")
	if len(s) > maxStatementLen {
		return s[:maxStatementLen] + "..."
	}
	return s
}
