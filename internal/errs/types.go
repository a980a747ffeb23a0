package errs

import "strings"

// FieldError represents a field-level error, e.g. a column that must not be null.
//
//	{ "field": "name", "error": "is required" }
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// HTTPError is the client-facing error shape.
//
// Fields:
//   - Code: machine-friendly error code (e.g. "USER_ALREADY_EXISTS").
//   - Message: human-friendly message.
//   - Status: HTTP status code.
//   - Override: whether the message is safe to show to end users as-is.
//   - Errors: per-field errors.
type HTTPError struct {
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Status   int          `json:"status"`
	Override bool         `json:"override"`
	Errors   []FieldError `json:"errors"`
}

// Error makes *HTTPError satisfy the error interface.
func (e *HTTPError) Error() string {
	return e.Message
}

// Is matches any *HTTPError regardless of its fields.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// MakeUpperCaseWithUnderscores converts "Bad Request" into "BAD_REQUEST".
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
