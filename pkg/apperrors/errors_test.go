package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDataAccessError("query facts", cause)

	assert.Equal(t, "DATA_ACCESS: query facts: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NOT_FOUND: No measure(s) found", NewNotFoundError("No measure(s) found").Error())
}

func TestTypeOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("aggregate: %w", NewNotFoundError("No organization(s) found"))

	assert.Equal(t, ErrorTypeNotFound, TypeOf(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsDataAccess(err))
	assert.Equal(t, "No organization(s) found", Message(err))
}

func TestTypeOf_PlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, ErrorTypeInternal, TypeOf(err))
	assert.Equal(t, "internal server error", Message(err))
	assert.False(t, IsNotFound(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"not found":    {NewNotFoundError("x"), http.StatusBadRequest},
		"validation":   {NewValidationError("x"), http.StatusBadRequest},
		"unauthorized": {NewUnauthorizedError("x"), http.StatusUnauthorized},
		"unavailable":  {NewUnavailableError("x"), http.StatusServiceUnavailable},
		"data access":  {NewDataAccessError("x", errors.New("y")), http.StatusInternalServerError},
		"plain":        {errors.New("x"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}
