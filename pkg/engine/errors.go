package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// MutationError is implemented by every typed error this module returns.
// Code is stable and safe to switch on.
type MutationError interface {
	error
	Code() string
}

var (
	// ErrNoUpdatesSpecified is matched by *NoUpdatesSpecifiedError.
	ErrNoUpdatesSpecified = errors.New("at least one column needs to be changed within update operation")
	// ErrAlreadyExecuted is returned by a second Execute on the same builder.
	ErrAlreadyExecuted = errors.New("mutation already executed")
	// ErrNotConnected is returned when a session or engine has no live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrNilSession is returned when a builder was created without a session.
	ErrNilSession = errors.New("session is nil")
)

// ============================================================
// BUILDER ERRORS
// ============================================================

// UnsupportedReferenceError means a FieldRef is not a proper member selector.
type UnsupportedReferenceError struct {
	Ref    FieldRef
	Reason string
}

func (e *UnsupportedReferenceError) Error() string {
	msg := "not a proper member selector"
	if e.Ref != nil {
		msg += fmt.Sprintf(": %s", describeRef(e.Ref))
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *UnsupportedReferenceError) Code() string { return "UNSUPPORTED_REFERENCE" }

// NoUpdatesSpecifiedError is returned by an update executed without any SetProperty call.
type NoUpdatesSpecifiedError struct {
	Entity string
}

func (e *NoUpdatesSpecifiedError) Error() string {
	return fmt.Sprintf("update %s: %s", e.Entity, ErrNoUpdatesSpecified)
}

func (e *NoUpdatesSpecifiedError) Code() string { return "NO_UPDATES_SPECIFIED" }

func (e *NoUpdatesSpecifiedError) Is(target error) bool {
	return target == ErrNoUpdatesSpecified
}

// ============================================================
// MAPPING ERRORS
// ============================================================

// UnknownEntityError means the mapping has no entity with this name.
type UnknownEntityError struct {
	Entity    string
	Available []string
}

func (e *UnknownEntityError) Error() string {
	msg := fmt.Sprintf("unknown entity '%s'", e.Entity)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf("\nAvailable entities: %v", e.Available)
	}
	return msg
}

func (e *UnknownEntityError) Code() string { return "UNKNOWN_ENTITY" }

// UnknownFieldError means the entity mapping has no property with this name.
type UnknownFieldError struct {
	Entity    string
	Field     string
	Available []string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field '%s' in entity '%s'", e.Field, e.Entity)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf("\nAvailable fields: %v", e.Available)
	}
	return msg
}

func (e *UnknownFieldError) Code() string { return "UNKNOWN_FIELD" }

// ============================================================
// QUERY ERRORS
// ============================================================

// StatementError is a query-language parse failure.
type StatementError struct {
	Statement string
	Message   string
	Line      int
	Column    int
}

func (e *StatementError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid statement at %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "invalid statement: " + e.Message
}

func (e *StatementError) Code() string { return "INVALID_STATEMENT" }

// ParameterError reports a named parameter that is unknown or never bound.
type ParameterError struct {
	Name   string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter '%s': %s", e.Name, e.Reason)
}

func (e *ParameterError) Code() string { return "INVALID_PARAMETER" }

// ============================================================
// DATABASE CONSTRAINT ERRORS
// ============================================================

// UniqueConstraintError represents a unique constraint violation.
type UniqueConstraintError struct {
	Field      string
	Value      interface{}
	Table      string
	Suggestion string
	Cause      error
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf(
		"unique constraint violation on field '%s' in table '%s'\n"+
			"Value: %v already exists\n"+
			"Suggestion: %s",
		e.Field, e.Table, e.Value, e.Suggestion,
	)
}

func (e *UniqueConstraintError) Code() string  { return "UNIQUE_CONSTRAINT_VIOLATION" }
func (e *UniqueConstraintError) Unwrap() error { return e.Cause }

// ForeignKeyError represents a foreign key constraint violation.
type ForeignKeyError struct {
	Field           string
	Value           interface{}
	ReferencedTable string
	Suggestion      string
	Cause           error
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf(
		"foreign key constraint violation on field '%s'\n"+
			"Value: %v does not exist in %s\n"+
			"Suggestion: %s",
		e.Field, e.Value, e.ReferencedTable, e.Suggestion,
	)
}

func (e *ForeignKeyError) Code() string  { return "FOREIGN_KEY_VIOLATION" }
func (e *ForeignKeyError) Unwrap() error { return e.Cause }

// NotNullError represents a NOT NULL constraint violation.
type NotNullError struct {
	Field      string
	Suggestion string
	Cause      error
}

func (e *NotNullError) Error() string {
	return fmt.Sprintf(
		"NOT NULL constraint violation on field '%s'\n"+
			"Suggestion: %s",
		e.Field, e.Suggestion,
	)
}

func (e *NotNullError) Code() string  { return "NOT_NULL_VIOLATION" }
func (e *NotNullError) Unwrap() error { return e.Cause }

// ConstraintError represents any other constraint violation (CHECK, exclusion).
type ConstraintError struct {
	Type       string
	Field      string
	Suggestion string
	Cause      error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf(
		"%s constraint violation on field '%s'\n"+
			"Suggestion: %s",
		e.Type, e.Field, e.Suggestion,
	)
}

func (e *ConstraintError) Code() string {
	return strings.ToUpper(e.Type) + "_CONSTRAINT_VIOLATION"
}
func (e *ConstraintError) Unwrap() error { return e.Cause }

// ============================================================
// FORMATTING
// ============================================================

// FormatError renders err for a terminal. Statement errors get a caret
// under the offending column; other typed errors get their code.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var stmtErr *StatementError
	if errors.As(err, &stmtErr) {
		return formatStatementError(stmtErr)
	}

	var b strings.Builder
	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprintf(&b, "Error: ")

	var mErr MutationError
	if errors.As(err, &mErr) {
		codeColor := color.New(color.FgCyan)
		codeColor.Fprintf(&b, "[%s] ", mErr.Code())
	}
	fmt.Fprintf(&b, "%s\n", err.Error())
	return b.String()
}

func formatStatementError(e *StatementError) string {
	var b strings.Builder

	errorColor := color.New(color.FgRed, color.Bold)
	errorColor.Fprintf(&b, "Error: ")
	fmt.Fprintf(&b, "%s\n\n", e.Message)

	if e.Line > 0 {
		locationColor := color.New(color.FgCyan)
		locationColor.Fprintf(&b, "  --> ")
		fmt.Fprintf(&b, "statement:%d:%d\n", e.Line, e.Column)
	}

	lines := strings.Split(e.Statement, "\n")
	if e.Line > 0 && e.Line <= len(lines) {
		b.WriteString("\n  ")
		b.WriteString(lines[e.Line-1])
		b.WriteString("\n")
		if e.Column > 0 {
			b.WriteString("  " + strings.Repeat(" ", e.Column-1))
			helpColor := color.New(color.FgYellow, color.Bold)
			helpColor.Fprint(&b, "^")
			b.WriteString("\n")
		}
	}

	return b.String()
}
