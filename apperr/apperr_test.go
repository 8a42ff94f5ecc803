// ABOUTME: Tests for the error taxonomy
// ABOUTME: Covers kind detection through wrapping, messages and HTTP mapping
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorMessage(t *testing.T) {
	err := Provider("Adobe Sign", 503)

	assert.Equal(t, "Adobe Sign API error 503", err.Error())
	assert.Equal(t, 503, err.Status)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
}

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to load record: %w", NotFound("sponsor_for_conference", "abc"))

	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindValidation))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
}

func TestValidationFields(t *testing.T) {
	err := Validation(map[string]string{"email": "invalid", "axis": "unknown"})

	assert.Equal(t, "validation failed (axis: unknown; email: invalid)", err.Error())
	assert.Equal(t, "invalid", FieldsOf(err)["email"])
}

func TestPlainErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestTransactionUnwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Transaction(cause).WithOp("delete sponsor")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "delete sponsor: transaction failed: disk I/O error", err.Error())
}
