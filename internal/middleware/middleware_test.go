package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-account-auth/internal/model"
)

type stubSessions struct {
	subject string
	err     error
	purpose model.Purpose
}

func (s *stubSessions) Require(_ *http.Request, purpose model.Purpose, _ bool) (string, error) {
	s.purpose = purpose
	return s.subject, s.err
}

func TestAuthMiddleware_RequireSession(t *testing.T) {
	t.Parallel()

	t.Run("stores the subject in the context", func(t *testing.T) {
		sessions := &stubSessions{subject: "user-1"}
		var got string
		handler := NewAuthMiddleware(sessions).RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = SubjectFromContext(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
		assert.Equal(t, "user-1", got)
		assert.Equal(t, model.PurposeAccess, sessions.purpose)
	})

	t.Run("rejects without calling next", func(t *testing.T) {
		handler := NewAuthMiddleware(&stubSessions{err: model.ErrPurposeMismatch}).RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next must not run")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestLoggingSetsRequestID(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Logging(nil, false)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec = httptest.NewRecorder()
	Logging(nil, false)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(requestIDHeader))
}
