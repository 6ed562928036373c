package middleware

import (
	"context"
	"net/http"

	"go-account-auth/internal/model"
)

type sessionVerifier interface {
	Require(r *http.Request, purpose model.Purpose, forbidden bool) (string, error)
}

type contextKey string

const subjectContextKey contextKey = "session_subject"

type AuthMiddleware struct {
	sessions sessionVerifier
}

func NewAuthMiddleware(sessions sessionVerifier) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireSession admits requests that carry a valid access cookie. Tokens of
// any other purpose are rejected.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.sessions.Require(r, model.PurposeAccess, false)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok && subject != ""
}
