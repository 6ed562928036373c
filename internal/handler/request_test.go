package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-account-auth/internal/model"
	"go-account-auth/pkg/apierror"
)

func TestDecodeJSON(t *testing.T) {
	newRequest := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	}

	t.Run("valid body", func(t *testing.T) {
		var payload model.RecoverPasswordRequest
		err := decodeJSON(httptest.NewRecorder(), newRequest(`{"email":"a@example.com"}`), &payload, false)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", payload.Email)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		var payload model.ResetPasswordRequest
		err := decodeJSON(httptest.NewRecorder(), newRequest(`{"email":"nope","password":"short"}`), &payload, false)

		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
		assert.Equal(t, "email: must be a valid email address; password: must be at least 8 characters long; token: is required", apiErr.Details)
	})

	t.Run("empty body", func(t *testing.T) {
		var payload model.SignoutRequest
		assert.NoError(t, decodeJSON(httptest.NewRecorder(), newRequest(""), &payload, true))

		var recover model.RecoverPasswordRequest
		assert.Error(t, decodeJSON(httptest.NewRecorder(), newRequest(""), &recover, false))
	})

	t.Run("oversized body", func(t *testing.T) {
		var payload model.SignoutRequest
		body := `{"settings":{"x":"` + strings.Repeat("a", maxBodyBytes) + `"}}`
		assert.Error(t, decodeJSON(httptest.NewRecorder(), newRequest(body), &payload, true))
	})
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused to 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestWriteErrorDuplicateIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &model.DuplicateIdentityError{Email: true})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "DUPLICATE_IDENTITY")
}
