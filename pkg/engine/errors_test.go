package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestNoUpdatesSpecifiedError(t *testing.T) {
	err := &NoUpdatesSpecifiedError{Entity: "Car"}

	if !errors.Is(err, ErrNoUpdatesSpecified) {
		t.Error("Expected errors.Is to match ErrNoUpdatesSpecified")
	}
	if !strings.Contains(err.Error(), "at least one column needs to be changed") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if err.Code() != "NO_UPDATES_SPECIFIED" {
		t.Errorf("Expected code NO_UPDATES_SPECIFIED, got %s", err.Code())
	}

	wrapped := fmt.Errorf("bulk job: %w", err)
	if !errors.Is(wrapped, ErrNoUpdatesSpecified) {
		t.Error("Expected wrapped error to still match")
	}

	var _ MutationError = err
}

func TestUnsupportedReferenceError(t *testing.T) {
	err := &UnsupportedReferenceError{Ref: Constant{Value: 3}, Reason: "literal"}

	errMsg := err.Error()
	if errMsg != "not a proper member selector: Constant(3) (literal)" {
		t.Errorf("Unexpected message: %s", errMsg)
	}

	bare := &UnsupportedReferenceError{}
	if bare.Error() != "not a proper member selector" {
		t.Errorf("Unexpected message: %s", bare.Error())
	}

	var _ MutationError = err
}

func TestUnknownEntityError(t *testing.T) {
	err := &UnknownEntityError{
		Entity:    "Truck",
		Available: []string{"Car", "Driver"},
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "Truck") {
		t.Errorf("Error message should contain entity name")
	}
	if !strings.Contains(errMsg, "Car") {
		t.Errorf("Error message should list available entities")
	}
	if err.Code() != "UNKNOWN_ENTITY" {
		t.Errorf("Expected code UNKNOWN_ENTITY, got %s", err.Code())
	}
}

func TestUnknownFieldError(t *testing.T) {
	err := &UnknownFieldError{
		Entity:    "Car",
		Field:     "Colour",
		Available: []string{"Id", "Name", "Year"},
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "Colour") || !strings.Contains(errMsg, "Car") {
		t.Errorf("Error message should contain field and entity: %s", errMsg)
	}
	if err.Code() != "UNKNOWN_FIELD" {
		t.Errorf("Expected code UNKNOWN_FIELD, got %s", err.Code())
	}
}

func TestParameterError(t *testing.T) {
	err := &ParameterError{Name: "filter0", Reason: "not bound"}

	if err.Error() != "parameter 'filter0': not bound" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if err.Code() != "INVALID_PARAMETER" {
		t.Errorf("Expected code INVALID_PARAMETER, got %s", err.Code())
	}
}

func TestStatementError(t *testing.T) {
	err := &StatementError{Message: "unexpected token", Line: 1, Column: 19}
	if err.Error() != "invalid statement at 1:19: unexpected token" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	noPos := &StatementError{Message: "empty statement"}
	if noPos.Error() != "invalid statement: empty statement" {
		t.Errorf("Unexpected message: %s", noPos.Error())
	}
}

func TestUniqueConstraintError(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := &UniqueConstraintError{
		Field:      "name",
		Value:      "Golf",
		Table:      "cars",
		Suggestion: "Use a different value",
		Cause:      cause,
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "name") || !strings.Contains(errMsg, "Golf") {
		t.Errorf("Error message should contain field and value: %s", errMsg)
	}
	if err.Code() != "UNIQUE_CONSTRAINT_VIOLATION" {
		t.Errorf("Expected code UNIQUE_CONSTRAINT_VIOLATION, got %s", err.Code())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
}

func TestNotNullError(t *testing.T) {
	err := &NotNullError{Field: "name", Suggestion: "Provide a value"}

	if !strings.Contains(err.Error(), "NOT NULL") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if err.Code() != "NOT_NULL_VIOLATION" {
		t.Errorf("Expected code NOT_NULL_VIOLATION, got %s", err.Code())
	}
}

func TestForeignKeyError(t *testing.T) {
	err := &ForeignKeyError{Field: "owner_id", Value: 9, ReferencedTable: "drivers"}

	if !strings.Contains(err.Error(), "drivers") {
		t.Errorf("Error message should contain referenced table: %s", err.Error())
	}
	if err.Code() != "FOREIGN_KEY_VIOLATION" {
		t.Errorf("Expected code FOREIGN_KEY_VIOLATION, got %s", err.Code())
	}
}

func TestConstraintError(t *testing.T) {
	err := &ConstraintError{Type: "check", Field: "year"}

	if err.Code() != "CHECK_CONSTRAINT_VIOLATION" {
		t.Errorf("Expected code CHECK_CONSTRAINT_VIOLATION, got %s", err.Code())
	}
}

func TestFormatError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	if FormatError(nil) != "" {
		t.Error("Expected empty output for nil error")
	}

	out := FormatError(&UnknownFieldError{Entity: "Car", Field: "Colour"})
	assertContains(t, out, "Error: ")
	assertContains(t, out, "[UNKNOWN_FIELD]")

	out = FormatError(errors.New("plain"))
	assertContains(t, out, "Error: plain")
}

func TestFormatError_StatementCaret(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	err := &StatementError{
		Statement: "UPDATE Car entity WHERE entity.Id = :filter0",
		Message:   `unexpected token "WHERE" (expected "SET")`,
		Line:      1,
		Column:    19,
	}

	out := FormatError(fmt.Errorf("prepare: %w", err))

	assertContains(t, out, "statement:1:19")
	assertContains(t, out, "  UPDATE Car entity WHERE")
	assertContains(t, out, "\n  "+strings.Repeat(" ", 18)+"^")
}
