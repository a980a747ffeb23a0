// Package errs defines the error types shared across the application.
//
// It holds two families:
//   - the record store taxonomy (ErrConstraintViolation, ErrInvalidArgument,
//     ErrStorage) carried by *StoreError, which every repository operation
//     returns on failure;
//   - HTTPError, the consistent shape callers translate store failures into
//     when they expose them to clients.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of store failure. Match them with errors.Is.
var (
	// ErrConstraintViolation means a uniqueness, not-null, foreign-key or
	// check constraint rejected an insert or update.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidArgument means the caller broke a precondition of the
	// operation itself. It is detected before any unit of work opens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorage covers every other storage failure (connectivity, timeout,
	// corruption, failed commit).
	ErrStorage = errors.New("storage error")
)

// StoreError is the failure returned by every record store operation.
//
// Kind is one of the taxonomy sentinels above. Err is the underlying cause
// (nil for pure validation failures). RollbackErr is set when rolling back
// the unit of work also failed; it is reported but never replaces Err.
type StoreError struct {
	Kind        error
	Op          string
	Table       string
	Message     string
	Err         error
	RollbackErr error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Op, e.Table, e.Kind)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.RollbackErr != nil {
		fmt.Fprintf(&b, " (rollback failed: %v)", e.RollbackErr)
	}
	return b.String()
}

// Is reports whether target is this error's kind.
func (e *StoreError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap exposes the cause and, when present, the rollback failure.
func (e *StoreError) Unwrap() []error {
	var out []error
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.RollbackErr != nil {
		out = append(out, e.RollbackErr)
	}
	return out
}

// NewInvalidArgument builds a validation failure for op on table.
func NewInvalidArgument(op, table, message string) *StoreError {
	return &StoreError{
		Kind:    ErrInvalidArgument,
		Op:      op,
		Table:   table,
		Message: message,
	}
}

// KindOf returns the taxonomy kind of err, or nil when err is not a store error.
func KindOf(err error) error {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return nil
}
