package sqlerr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/recordstore/internal/errs"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var uniqueKeySuffix = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// generateErrorCode creates "<DOMAIN>_<ACTION>" codes from a table name and
// violation type, e.g. users + UniqueViolation => USER_ALREADY_EXISTS.
func generateErrorCode(tableName string, errType Code) string {
	if tableName == "" {
		tableName = "RECORD"
	}

	domain := strings.ToUpper(tableName)
	// Naive singularization: USERS -> USER.
	if strings.HasSuffix(domain, "S") && len(domain) > 1 {
		domain = domain[:len(domain)-1]
	}

	action := "ERROR"
	switch errType {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation, ExclusionViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation:
		action = "INVALID"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

// formatUserFriendlyMessage produces a message intended for end users, not logs.
func formatUserFriendlyMessage(sqlErr *Error) string {
	entityName := getEntityName(sqlErr.TableName, sqlErr.ColumnName)

	switch sqlErr.Code {
	case ForeignKeyViolation:
		return fmt.Sprintf("The referenced %s does not exist", entityName)

	case UniqueViolation, ExclusionViolation:
		// "identifier" is replaced later when the column can be inferred.
		return fmt.Sprintf("A %s with this identifier already exists", entityName)

	case NotNullViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName == "" {
			fieldName = "field"
		}
		return fmt.Sprintf("The %s is required", fieldName)

	case CheckViolation:
		fieldName := humanizeText(sqlErr.ColumnName)
		if fieldName != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", fieldName)
		}
		return "One or more values do not meet required conditions"

	default:
		return "An error occurred while processing your request"
	}
}

// getEntityName infers an entity name: a "<x>_id" column wins, then the
// singularized table name, then "record".
func getEntityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		entity := strings.TrimSuffix(strings.ToLower(columnName), "_id")
		return humanizeText(entity)
	}

	if tableName != "" {
		entity := tableName
		if strings.HasSuffix(entity, "s") && len(entity) > 1 {
			entity = entity[:len(entity)-1]
		}
		return humanizeText(entity)
	}

	return "record"
}

// humanizeText converts snake_case into Title Case: "first_name" -> "First Name".
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// extractColumnForUniqueViolation infers the column from a unique constraint
// name. Supported conventions: "unique_<table>_<column>" and
// "<table>_<column>_key" / "<table>_<column>_ukey".
func extractColumnForUniqueViolation(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}

	matches := uniqueKeySuffix.FindStringSubmatch(constraintName)
	if len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// HandleError converts a record store failure into an application-level
// HTTP error.
//
// Output:
//   - *errs.HTTPError: returned unchanged
//   - InvalidArgument: 400 with the validation message
//   - ConstraintViolation: 409 for unique/exclusion violations, 400 with
//     field details for not-null, foreign-key and check violations
//   - StorageError or anything else: 500 with a generic message
func HandleError(err error) *errs.HTTPError {
	if err == nil {
		return nil
	}

	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	if errors.Is(err, errs.ErrInvalidArgument) {
		message := "Invalid request"
		var storeErr *errs.StoreError
		if errors.As(err, &storeErr) && storeErr.Message != "" {
			message = storeErr.Message
		}
		return errs.NewBadRequestError(message, true, nil, nil)
	}

	sqlErr, ok := FromError(err)
	if !ok || !sqlErr.Code.IsConstraintViolation() {
		return errs.NewInternalServerError()
	}

	errorCode := generateErrorCode(sqlErr.TableName, sqlErr.Code)
	userMessage := formatUserFriendlyMessage(sqlErr)

	switch sqlErr.Code {
	case UniqueViolation, ExclusionViolation:
		if columnName := extractColumnForUniqueViolation(sqlErr.ConstraintName); columnName != "" {
			userMessage = strings.ReplaceAll(userMessage, "identifier", humanizeText(columnName))
		}
		return errs.NewConflictError(userMessage, true, &errorCode, nil)

	case NotNullViolation:
		fieldErrors := []errs.FieldError{
			{
				Field: strings.ToLower(sqlErr.ColumnName),
				Error: "is required",
			},
		}
		return errs.NewBadRequestError(userMessage, true, &errorCode, fieldErrors)

	default:
		return errs.NewBadRequestError(userMessage, true, &errorCode, nil)
	}
}
