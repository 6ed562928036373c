// Package session carries purpose-bound session tokens in HTTP cookies.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-account-auth/internal/model"
	"go-account-auth/internal/token"
)

const (
	AccessCookie       = "access-token"
	RefreshCookie      = "refresh-token"
	VerificationCookie = "account-verification"
	ResetCookie        = "password-reset"
)

type Config struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RememberMeTTL   time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	// FlowCooldown bounds the validity of the token inside a flow cookie. The
	// cookie itself lives as long as the secret token it accompanies.
	FlowCooldown time.Duration
	BasePath     string
	Secure       bool
}

type Manager struct {
	codec *token.SessionCodec
	cfg   Config
}

func NewManager(codec *token.SessionCodec, cfg Config) *Manager {
	cfg.BasePath = "/" + strings.Trim(cfg.BasePath, "/")
	return &Manager{codec: codec, cfg: cfg}
}

// CookieName returns the cookie that carries tokens of purpose.
func CookieName(purpose model.Purpose) string {
	switch purpose {
	case model.PurposeAccess:
		return AccessCookie
	case model.PurposeRefresh:
		return RefreshCookie
	case model.PurposeAccountVerification:
		return VerificationCookie
	case model.PurposePasswordReset:
		return ResetCookie
	}
	return ""
}

func (m *Manager) cookiePath(purpose model.Purpose) string {
	if purpose == model.PurposeAccess {
		return m.cfg.BasePath
	}
	return strings.TrimSuffix(m.cfg.BasePath, "/") + "/auth"
}

// Start mints an access and a refresh token for user and attaches both cookies.
func (m *Manager) Start(w http.ResponseWriter, user model.User, rememberMe bool) error {
	refreshTTL := m.cfg.RefreshTTL
	if rememberMe {
		refreshTTL = m.cfg.RememberMeTTL
	}

	access, _, err := m.codec.Mint(user.ID, model.PurposeAccess, m.cfg.AccessTTL)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	refresh, _, err := m.codec.Mint(user.ID, model.PurposeRefresh, refreshTTL)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	m.set(w, model.PurposeAccess, access, m.cfg.AccessTTL)
	m.set(w, model.PurposeRefresh, refresh, refreshTTL)
	return nil
}

// End deletes both session cookies. It is safe to call without a session.
func (m *Manager) End(w http.ResponseWriter) {
	m.clear(w, model.PurposeAccess)
	m.clear(w, model.PurposeRefresh)
}

// RefreshAccess sets a fresh access cookie and leaves the refresh cookie alone.
func (m *Manager) RefreshAccess(w http.ResponseWriter, subject string) error {
	access, _, err := m.codec.Mint(subject, model.PurposeAccess, m.cfg.AccessTTL)
	if err != nil {
		return fmt.Errorf("refresh access: %w", err)
	}
	m.set(w, model.PurposeAccess, access, m.cfg.AccessTTL)
	return nil
}

// Require verifies the cookie of purpose and returns its subject.
//
// With forbidden set the check is inverted: a present and valid token is
// rejected with model.ErrForbidden, while an absent or lapsed one passes.
func (m *Manager) Require(r *http.Request, purpose model.Purpose, forbidden bool) (string, error) {
	raw, ok := m.read(r, purpose)
	if !ok {
		if forbidden {
			return "", nil
		}
		return "", model.ErrUnauthorized
	}

	claims, err := m.codec.Verify(raw, purpose)
	if forbidden {
		if err == nil {
			return "", model.ErrForbidden
		}
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// SetFlow attaches the cookie accompanying a verification or reset secret.
func (m *Manager) SetFlow(w http.ResponseWriter, subject string, purpose model.Purpose) error {
	maxAge := m.flowTTL(purpose)
	if maxAge == 0 {
		return fmt.Errorf("set flow cookie: unsupported purpose %q", purpose)
	}

	raw, _, err := m.codec.Mint(subject, purpose, m.cfg.FlowCooldown)
	if err != nil {
		return fmt.Errorf("set flow cookie: %w", err)
	}
	m.set(w, purpose, raw, maxAge)
	return nil
}

func (m *Manager) ClearFlow(w http.ResponseWriter, purpose model.Purpose) {
	m.clear(w, purpose)
}

// HasCookie reports whether the request carries a non-empty cookie of purpose.
func (m *Manager) HasCookie(r *http.Request, purpose model.Purpose) bool {
	_, ok := m.read(r, purpose)
	return ok
}

// InspectFlow identifies the subject of a flow cookie. cooling is true while
// the token is still inside the cooldown window. A missing cookie yields
// model.ErrUnauthorized, a forged or cross-purpose one model.ErrForbidden.
func (m *Manager) InspectFlow(r *http.Request, purpose model.Purpose) (subject string, cooling bool, err error) {
	raw, ok := m.read(r, purpose)
	if !ok {
		return "", false, model.ErrUnauthorized
	}

	claims, expired, err := m.codec.Inspect(raw, purpose)
	if err != nil {
		if errors.Is(err, model.ErrPurposeMismatch) || errors.Is(err, model.ErrInvalidToken) {
			return "", false, model.ErrForbidden
		}
		return "", false, err
	}
	return claims.Subject, !expired, nil
}

func (m *Manager) flowTTL(purpose model.Purpose) time.Duration {
	switch purpose {
	case model.PurposeAccountVerification:
		return m.cfg.VerificationTTL
	case model.PurposePasswordReset:
		return m.cfg.ResetTTL
	}
	return 0
}

func (m *Manager) read(r *http.Request, purpose model.Purpose) (string, bool) {
	c, err := r.Cookie(CookieName(purpose))
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return "", false
	}
	return c.Value, true
}

func (m *Manager) set(w http.ResponseWriter, purpose model.Purpose, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(purpose),
		Value:    value,
		Path:     m.cookiePath(purpose),
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Manager) clear(w http.ResponseWriter, purpose model.Purpose) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(purpose),
		Value:    "",
		Path:     m.cookiePath(purpose),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
