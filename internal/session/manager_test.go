package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-account-auth/internal/model"
	"go-account-auth/internal/token"
)

func newTestManager(t *testing.T, cooldown time.Duration) *Manager {
	t.Helper()
	codec, err := token.NewSessionCodec("session-test-secret")
	require.NoError(t, err)

	return NewManager(codec, Config{
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		RememberMeTTL:   30 * 24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
		FlowCooldown:    cooldown,
		BasePath:        "/api/v1",
		Secure:          true,
	})
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func TestManager_Start(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 2*time.Minute)
	user := model.User{ID: "user-1"}

	t.Run("sets both cookies with fixed attributes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, m.Start(rec, user, false))

		cookies := cookiesByName(rec)
		require.Len(t, cookies, 2)

		access := cookies[AccessCookie]
		require.NotNil(t, access)
		assert.True(t, access.HttpOnly)
		assert.True(t, access.Secure)
		assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
		assert.Equal(t, "/api/v1", access.Path)
		assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

		refresh := cookies[RefreshCookie]
		require.NotNil(t, refresh)
		assert.Equal(t, "/api/v1/auth", refresh.Path)
		assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), refresh.MaxAge)
	})

	t.Run("remember me extends the refresh cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, m.Start(rec, user, true))

		refresh := cookiesByName(rec)[RefreshCookie]
		require.NotNil(t, refresh)
		assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), refresh.MaxAge)
	})
}

func TestManager_Require(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 2*time.Minute)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Start(rec, model.User{ID: "user-1"}, false))
	cookies := cookiesByName(rec)

	t.Run("returns the subject of a valid cookie", func(t *testing.T) {
		subject, err := m.Require(requestWith(cookies[AccessCookie]), model.PurposeAccess, false)
		require.NoError(t, err)
		assert.Equal(t, "user-1", subject)
	})

	t.Run("missing cookie is unauthorized", func(t *testing.T) {
		_, err := m.Require(requestWith(), model.PurposeAccess, false)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("refresh token in the access cookie is rejected", func(t *testing.T) {
		swapped := &http.Cookie{Name: AccessCookie, Value: cookies[RefreshCookie].Value}
		_, err := m.Require(requestWith(swapped), model.PurposeAccess, false)
		require.ErrorIs(t, err, model.ErrPurposeMismatch)

		swapped = &http.Cookie{Name: RefreshCookie, Value: cookies[AccessCookie].Value}
		_, err = m.Require(requestWith(swapped), model.PurposeRefresh, false)
		require.ErrorIs(t, err, model.ErrPurposeMismatch)
	})

	t.Run("forbidden mode rejects only present and valid cookies", func(t *testing.T) {
		flow := httptest.NewRecorder()
		require.NoError(t, m.SetFlow(flow, "user-1", model.PurposePasswordReset))
		reset := cookiesByName(flow)[ResetCookie]
		require.NotNil(t, reset)

		_, err := m.Require(requestWith(reset), model.PurposePasswordReset, true)
		require.ErrorIs(t, err, model.ErrForbidden)

		_, err = m.Require(requestWith(), model.PurposePasswordReset, true)
		require.NoError(t, err)

		forged := &http.Cookie{Name: ResetCookie, Value: "forged"}
		_, err = m.Require(requestWith(forged), model.PurposePasswordReset, true)
		require.NoError(t, err)
	})
}

func TestManager_Flow(t *testing.T) {
	t.Parallel()

	t.Run("flow cookie lives as long as its secret", func(t *testing.T) {
		m := newTestManager(t, 2*time.Minute)
		rec := httptest.NewRecorder()
		require.NoError(t, m.SetFlow(rec, "user-1", model.PurposeAccountVerification))

		c := cookiesByName(rec)[VerificationCookie]
		require.NotNil(t, c)
		assert.Equal(t, int((24 * time.Hour).Seconds()), c.MaxAge)
		assert.Equal(t, "/api/v1/auth", c.Path)

		subject, cooling, err := m.InspectFlow(requestWith(c), model.PurposeAccountVerification)
		require.NoError(t, err)
		assert.Equal(t, "user-1", subject)
		assert.True(t, cooling)
	})

	t.Run("after the cooldown the cookie still names its subject", func(t *testing.T) {
		m := newTestManager(t, -time.Second)
		rec := httptest.NewRecorder()
		require.NoError(t, m.SetFlow(rec, "user-1", model.PurposePasswordReset))
		c := cookiesByName(rec)[ResetCookie]

		subject, cooling, err := m.InspectFlow(requestWith(c), model.PurposePasswordReset)
		require.NoError(t, err)
		assert.Equal(t, "user-1", subject)
		assert.False(t, cooling)

		_, err = m.Require(requestWith(c), model.PurposePasswordReset, true)
		require.NoError(t, err)
	})

	t.Run("cross purpose flow cookie is forbidden", func(t *testing.T) {
		m := newTestManager(t, 2*time.Minute)
		rec := httptest.NewRecorder()
		require.NoError(t, m.SetFlow(rec, "user-1", model.PurposeAccountVerification))
		c := cookiesByName(rec)[VerificationCookie]

		moved := &http.Cookie{Name: ResetCookie, Value: c.Value}
		_, _, err := m.InspectFlow(requestWith(moved), model.PurposePasswordReset)
		require.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("absent flow cookie", func(t *testing.T) {
		m := newTestManager(t, 2*time.Minute)
		assert.False(t, m.HasCookie(requestWith(), model.PurposePasswordReset))
		_, _, err := m.InspectFlow(requestWith(), model.PurposePasswordReset)
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("session purposes cannot be used as flows", func(t *testing.T) {
		m := newTestManager(t, 2*time.Minute)
		require.Error(t, m.SetFlow(httptest.NewRecorder(), "user-1", model.PurposeAccess))
	})
}

func TestManager_End(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 2*time.Minute)

	rec := httptest.NewRecorder()
	m.End(rec)

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := cookies[name]
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestManager_RefreshAccess(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 2*time.Minute)

	rec := httptest.NewRecorder()
	require.NoError(t, m.RefreshAccess(rec, "user-1"))

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 1)
	require.NotNil(t, cookies[AccessCookie])
}
