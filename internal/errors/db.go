package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// "Key (email)=(a@b.c) already exists."
	reDetailKey = regexp.MustCompile(`^Key \(([^)]+)\)=`)
	// "Key (owner_id)=(...) is not present in table "users"."
	reDetailMissingParent = regexp.MustCompile(`is not present in table "?([a-z_]+)"?`)
	// "Key (id)=(...) is still referenced from table "tasks"."
	reDetailStillReferenced = regexp.MustCompile(`is still referenced from table "?([a-z_]+)"?`)
)

// tableNouns names our tables the way error messages talk about them.
var tableNouns = map[string]string{
	"users":            "user",
	"match_jobs":       "job",
	"tasks":            "task",
	"job_stage_claims": "stage claim",
}

// MapDBError converts driver errors into AppErrors with client-safe messages. No-row
// results become NotFound, constraint violations become Conflict, ForeignKey or Validation,
// and context expiry becomes Timeout or Canceled. Unrecognised errors are returned as is.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	appErr := &AppError{Cause: err}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		appErr.Code = ErrCodeConflict
		appErr.Field = uniqueField(pgErr)
		appErr.Message = "This value already exists."
	case pgerrcode.ForeignKeyViolation:
		appErr.Code = ErrCodeForeignKey
		appErr.Message = foreignKeyMessage(pgErr)
	case pgerrcode.NotNullViolation:
		appErr.Code = ErrCodeValidation
		appErr.Field = pgErr.ColumnName
		appErr.Message = "A required value is missing."
	case pgerrcode.CheckViolation:
		appErr.Code = ErrCodeValidation
		appErr.Field = pgErr.ColumnName
		appErr.Message = "A value is out of range."
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		appErr.Code = ErrCodeConflict
		appErr.Message = "The record changed concurrently. Please retry."
	default:
		appErr.Code = ErrCodeInternal
		appErr.Message = "A database error occurred. Please try again."
	}
	return appErr
}

// IsRetryableDBError reports serialization failures and deadlocks, which succeed on retry.
func IsRetryableDBError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

// uniqueField picks the offending column from the error metadata, then the detail text,
// then a "<table>_<column>_key" constraint name. Multi-column keys yield "".
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reDetailKey.FindStringSubmatch(pgErr.Detail); m != nil {
		if !strings.ContainsAny(m[1], ",(") {
			return m[1]
		}
		return ""
	}
	return fieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
}

// fieldFromConstraint strips the table prefix and key suffix from a constraint name. Without
// a table name the split is ambiguous and "" is returned.
func fieldFromConstraint(table, constraint string) string {
	if table == "" {
		return ""
	}
	rest, ok := strings.CutPrefix(constraint, table+"_")
	if !ok {
		return ""
	}
	for _, suffix := range []string{"_key", "_unique", "_idx"} {
		if field, cut := strings.CutSuffix(rest, suffix); cut {
			return field
		}
	}
	return ""
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reDetailStillReferenced.FindStringSubmatch(pgErr.Detail); m != nil {
		return "Cannot delete because a " + tableNoun(m[1]) + " still refers to it."
	}
	if m := reDetailMissingParent.FindStringSubmatch(pgErr.Detail); m != nil {
		return "The referenced " + tableNoun(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "The operation conflicts with an existing " + tableNoun(pgErr.TableName) + "."
	}
	return "The operation references a record that does not exist."
}

func tableNoun(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if noun, ok := tableNouns[table]; ok {
		return noun
	}
	return strings.ReplaceAll(table, "_", " ")
}
