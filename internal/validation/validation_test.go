package validation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string `validate:"required,max=5"`
	Age  int    `validate:"gte=0,lte=150"`
	Role string `validate:"omitempty,oneof=admin member"`
}

func (p person) Validate() error { return Struct(p) }

type custom struct{ fail error }

func (c custom) Validate() error { return c.fail }

func TestCheck(t *testing.T) {
	t.Run("Should pass valid input", func(t *testing.T) {
		assert.NoError(t, Check(person{Name: "alice", Age: 30}))
	})

	t.Run("Should report every broken tag rule as a field error", func(t *testing.T) {
		err := Check(person{Name: "", Age: -1, Role: "root"})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
		assert.Equal(t, "Validation failed", httpErr.Message)
		assert.Equal(t, []errs.FieldError{
			{Field: "name", Error: "is required"},
			{Field: "age", Error: "must be at least 0"},
			{Field: "role", Error: "must be one of: admin member"},
		}, httpErr.Errors)
	})

	t.Run("Should describe string length limits", func(t *testing.T) {
		err := Check(person{Name: "bartholomew"})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Len(t, httpErr.Errors, 1)
		assert.Equal(t, "must not exceed 5 characters", httpErr.Errors[0].Error)
	})

	t.Run("Should convert custom validation errors", func(t *testing.T) {
		err := Check(custom{fail: CustomValidationErrors{{Field: "values", Message: "nothing to update"}}})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, []errs.FieldError{{Field: "values", Error: "nothing to update"}}, httpErr.Errors)
	})

	t.Run("Should keep the message of plain errors", func(t *testing.T) {
		err := Check(custom{fail: errors.New("bad input")})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, "bad input", httpErr.Message)
		assert.Nil(t, httpErr.Errors)
	})
}
