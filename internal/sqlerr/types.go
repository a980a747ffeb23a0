package sqlerr

import "fmt"

// Code is the application-level category of a database error.
type Code string

const (
	Other                Code = "other"
	NotNullViolation     Code = "not_null_violation"
	ForeignKeyViolation  Code = "foreign_key_violation"
	UniqueViolation      Code = "unique_violation"
	CheckViolation       Code = "check_violation"
	ExclusionViolation   Code = "exclusion_violation"
	SerializationFailure Code = "serialization_failure"
	DeadlockDetected     Code = "deadlock_detected"
	QueryCanceled        Code = "query_canceled"
	ConnectionFailure    Code = "connection_failure"
	UndefinedTable       Code = "undefined_table"
	UndefinedColumn      Code = "undefined_column"
)

// Severity mirrors the PostgreSQL severity levels.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityLog     Severity = "LOG"
)

// Error is a driver error normalized into our own enums, keeping the
// original SQLSTATE and object names for messages and debugging.
type Error struct {
	Code           Code
	Severity       Severity
	DatabaseCode   string
	Message        string
	SchemaName     string
	TableName      string
	ColumnName     string
	DataTypeName   string
	ConstraintName string
	driverErr      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Severity, e.DatabaseCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

// IsConstraintViolation reports whether the code is an integrity
// constraint violation (SQLSTATE class 23).
func (c Code) IsConstraintViolation() bool {
	switch c {
	case NotNullViolation, ForeignKeyViolation, UniqueViolation, CheckViolation, ExclusionViolation:
		return true
	}
	return false
}

// MapCode maps a SQLSTATE onto a Code.
func MapCode(sqlState string) Code {
	switch sqlState {
	case "23502":
		return NotNullViolation
	case "23503":
		return ForeignKeyViolation
	case "23505":
		return UniqueViolation
	case "23514":
		return CheckViolation
	case "23P01":
		return ExclusionViolation
	case "40001":
		return SerializationFailure
	case "40P01":
		return DeadlockDetected
	case "57014":
		return QueryCanceled
	case "42P01":
		return UndefinedTable
	case "42703":
		return UndefinedColumn
	}
	// Class 08: connection exception.
	if len(sqlState) == 5 && sqlState[:2] == "08" {
		return ConnectionFailure
	}
	return Other
}

// MapSeverity maps a PostgreSQL severity string onto a Severity.
func MapSeverity(severity string) Severity {
	switch Severity(severity) {
	case SeverityError, SeverityFatal, SeverityPanic, SeverityWarning,
		SeverityNotice, SeverityDebug, SeverityInfo, SeverityLog:
		return Severity(severity)
	}
	return SeverityError
}
