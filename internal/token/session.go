// Package token mints and checks the two token families of the account
// service: stateless signed session tokens and single-use secret tokens
// persisted on the user record.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-account-auth/internal/model"
)

var ErrEmptySecret = errors.New("session signing secret is required")

type Claims struct {
	jwt.RegisteredClaims
	Purpose model.Purpose `json:"purpose"`
}

// SessionCodec signs purpose-bound HS256 tokens. Verification is pure
// computation and never touches storage.
type SessionCodec struct {
	secret []byte
	now    func() time.Time
}

func NewSessionCodec(secret string) (*SessionCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	return &SessionCodec{secret: []byte(secret), now: time.Now}, nil
}

// WithClock replaces the time source used for minting and verification.
func (c *SessionCodec) WithClock(now func() time.Time) *SessionCodec {
	c.now = now
	return c
}

// Mint returns the signed token and its expiry.
func (c *SessionCodec) Mint(subject string, purpose model.Purpose, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("mint %s token: empty subject", purpose)
	}
	if !purpose.Valid() {
		return "", time.Time{}, fmt.Errorf("mint token: unknown purpose %q", purpose)
	}

	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, expiresAt, nil
}

// Verify returns the claims of a valid, unexpired token minted for expected.
func (c *SessionCodec) Verify(raw string, expected model.Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrInvalidToken
	}

	return checkClaims(claims, expected)
}

// Inspect checks signature and purpose but reports expiry instead of failing
// on it, so a lapsed token can still identify its subject.
func (c *SessionCodec) Inspect(raw string, expected model.Purpose) (*Claims, bool, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, false, model.ErrInvalidToken
	}

	if _, err := checkClaims(claims, expected); err != nil {
		return nil, false, err
	}
	if claims.ExpiresAt == nil {
		return nil, false, model.ErrInvalidToken
	}

	expired := !c.now().Before(claims.ExpiresAt.Time)
	return claims, expired, nil
}

func (c *SessionCodec) key(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, model.ErrInvalidToken
	}
	return c.secret, nil
}

func checkClaims(claims *Claims, expected model.Purpose) (*Claims, error) {
	if claims.Subject == "" {
		return nil, model.ErrInvalidToken
	}
	if claims.Purpose != expected {
		return nil, model.ErrPurposeMismatch
	}
	return claims, nil
}
