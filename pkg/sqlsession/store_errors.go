package sqlsession

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// mapStoreError converts driver constraint violations into engine error
// types. The driver error stays reachable through Unwrap; anything that is
// not a recognised constraint violation is returned unchanged.
func mapStoreError(err error, entity *engine.Entity, values map[string]any) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPostgresError(err, pgErr, entity, values)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return mapSQLiteError(err, liteErr, entity, values)
	}

	return err
}

// ============================================================
// PostgreSQL
// ============================================================

// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapPostgresError(err error, pgErr *pgconn.PgError, entity *engine.Entity, values map[string]any) error {
	switch pgErr.Code {
	case "23505": // unique_violation
		// Detail format: "Key (email)=(test@mail.com) already exists."
		column := extractFieldFromDetail(pgErr.Detail)
		return &engine.UniqueConstraintError{
			Field:      column,
			Value:      values[column],
			Table:      tableOf(entity, pgErr.TableName),
			Suggestion: fmt.Sprintf("Use a different value for %s, or update the existing record", column),
			Cause:      err,
		}

	case "23503": // foreign_key_violation
		// Detail format: "Key (author_id)=(uuid-999) is not present in table "users"."
		column := extractFieldFromDetail(pgErr.Detail)
		referenced := extractQuoted(pgErr.Detail)
		return &engine.ForeignKeyError{
			Field:           column,
			Value:           values[column],
			ReferencedTable: referenced,
			Suggestion:      fmt.Sprintf("Ensure the referenced row exists in %s, or delete dependent rows first", referenced),
			Cause:           err,
		}

	case "23502": // not_null_violation
		column := pgErr.ColumnName
		if column == "" {
			column = extractQuoted(pgErr.Message)
		}
		return &engine.NotNullError{
			Field:      column,
			Suggestion: fmt.Sprintf("Provide a value for %s (this column is required)", column),
			Cause:      err,
		}

	case "23514": // check_violation
		return &engine.ConstraintError{
			Type:       "check",
			Field:      pgErr.ColumnName,
			Suggestion: fmt.Sprintf("Value violates check constraint: %s", pgErr.ConstraintName),
			Cause:      err,
		}

	default:
		return err
	}
}

// ============================================================
// SQLite
// ============================================================

// Message format: "UNIQUE constraint failed: cars.name"
func mapSQLiteError(err error, liteErr sqlite3.Error, entity *engine.Entity, values map[string]any) error {
	if liteErr.Code != sqlite3.ErrConstraint {
		return err
	}
	table, column := extractSQLiteColumn(liteErr.Error())

	switch liteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &engine.UniqueConstraintError{
			Field:      column,
			Value:      values[column],
			Table:      tableOf(entity, table),
			Suggestion: fmt.Sprintf("Use a different value for %s, or update the existing record", column),
			Cause:      err,
		}
	case sqlite3.ErrConstraintNotNull:
		return &engine.NotNullError{
			Field:      column,
			Suggestion: fmt.Sprintf("Provide a value for %s (this column is required)", column),
			Cause:      err,
		}
	case sqlite3.ErrConstraintForeignKey:
		return &engine.ForeignKeyError{
			Field:      column,
			Suggestion: "Ensure the referenced row exists, or delete dependent rows first",
			Cause:      err,
		}
	case sqlite3.ErrConstraintCheck:
		return &engine.ConstraintError{
			Type:       "check",
			Field:      column,
			Suggestion: "Value violates a check constraint",
			Cause:      err,
		}
	default:
		return err
	}
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

func tableOf(entity *engine.Entity, fallback string) string {
	if entity != nil {
		return entity.Table
	}
	return fallback
}

// extractFieldFromDetail extracts the column name from a PostgreSQL detail
// Input: "Key (email)=(test@mail.com) already exists."
// Output: "email"
func extractFieldFromDetail(detail string) string {
	start := strings.Index(detail, "(")
	end := strings.Index(detail, ")")
	if start >= 0 && end > start {
		return detail[start+1 : end]
	}
	return ""
}

// extractQuoted returns the first double-quoted word of message
// Input: 'null value in column "name" of relation "cars"'
// Output: "name"
func extractQuoted(message string) string {
	start := strings.Index(message, `"`)
	if start >= 0 {
		end := strings.Index(message[start+1:], `"`)
		if end >= 0 {
			return message[start+1 : start+1+end]
		}
	}
	return ""
}

// extractSQLiteColumn splits the "table.column" suffix of a SQLite
// constraint message. Composite keys report only the first column.
func extractSQLiteColumn(message string) (table, column string) {
	_, target, ok := strings.Cut(message, "constraint failed: ")
	if !ok {
		return "", ""
	}
	target, _, _ = strings.Cut(target, ",")
	table, column, ok = strings.Cut(strings.TrimSpace(target), ".")
	if !ok {
		return "", table
	}
	return table, column
}
