// Package validation validates caller input before it reaches a store.
//
// Input types carry `validate` struct tags and implement Validatable. Failures
// are returned as a 400 *errs.HTTPError with one FieldError per rule broken,
// so they print and translate the same way store errors do.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validatable is implemented by input types that know how to validate themselves.
type Validatable interface {
	Validate() error
}

// CustomValidationError is a rule that cannot be expressed with struct tags.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// Struct runs the struct tag rules on v. Input types call it from Validate.
func Struct(v any) error {
	return validate.Struct(v)
}

// Check runs v.Validate and converts a failure into a 400 *errs.HTTPError.
func Check(v Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	msg, fieldErrors := extractValidationError(err)
	if fieldErrors == nil {
		return errs.NewBadRequestError(err.Error(), true, nil, nil)
	}
	return errs.NewBadRequestError(msg, true, nil, fieldErrors)
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var custom CustomValidationErrors
	if errors.As(err, &custom) {
		for _, e := range custom {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: e.Field, Error: e.Message})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "", nil
	}

	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: strings.ToLower(fe.Field()),
			Error: describe(fe),
		})
	}
	return "Validation failed", fieldErrors
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"

	case "min":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())

	case "max":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())

	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())

	case "lte":
		return fmt.Sprintf("must not exceed %s", fe.Param())

	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())

	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s: %s:%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}
