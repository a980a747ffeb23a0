// Package sqlerr specifically handles database driver errors.
//
// It parses cryptic SQLSTATE codes from the pgx driver, decides which store
// error kind they belong to (constraint violation or storage failure), and
// converts store errors into user-friendly HTTP-shaped errors for callers.
package sqlerr

import (
	"errors"

	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCode reports the Code for a given error.
//
// Both an already-converted *Error and a raw *pgconn.PgError anywhere in the
// chain are recognized. Anything else is Other.
func ErrCode(err error) Code {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return MapCode(pgErr.Code)
	}
	return Other
}

// ConvertPgError converts a raw Postgres error into our Error.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

// FromError extracts the normalized driver error from err's chain.
func FromError(err error) (*Error, bool) {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ConvertPgError(pgErr), true
	}
	return nil, false
}

// Kind classifies a failed storage call into the store error taxonomy.
//
// Integrity constraint violations become errs.ErrConstraintViolation;
// everything else (connectivity, cancellation, failed commit, unknown
// SQLSTATE) is errs.ErrStorage. A nil error has no kind.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	if ErrCode(err).IsConstraintViolation() {
		return errs.ErrConstraintViolation
	}
	return errs.ErrStorage
}
