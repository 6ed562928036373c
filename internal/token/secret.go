package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go-account-auth/internal/model"
)

const secretBytes = 20

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// SecretStore persists the hash of the pending secret of a user and clears it
// atomically on consumption.
type SecretStore interface {
	StoreSecret(ctx context.Context, userID string, secret model.PendingSecret) error
	ConsumeSecret(ctx context.Context, params model.ConsumeSecret) (model.User, error)
}

// Effect lists the writes applied together with a successful consumption.
type Effect struct {
	MarkVerified bool
	NewPassword  *string
}

type SecretTokens struct {
	store SecretStore
	ttl   map[model.Purpose]time.Duration
	now   func() time.Time
}

func NewSecretTokens(store SecretStore, verificationTTL time.Duration, resetTTL time.Duration) *SecretTokens {
	return &SecretTokens{
		store: store,
		ttl: map[model.Purpose]time.Duration{
			model.PurposeAccountVerification: verificationTTL,
			model.PurposePasswordReset:       resetTTL,
		},
		now: time.Now,
	}
}

// WithClock replaces the time source used for issuance and expiry checks.
func (s *SecretTokens) WithClock(now func() time.Time) *SecretTokens {
	s.now = now
	return s
}

func (s *SecretTokens) TTL(purpose model.Purpose) time.Duration {
	return s.ttl[purpose]
}

// Generate creates a fresh secret without persisting it. The plaintext is
// meant for out-of-band delivery only.
func (s *SecretTokens) Generate(purpose model.Purpose) (string, model.PendingSecret, error) {
	if !purpose.IsSecretFlow() {
		return "", model.PendingSecret{}, fmt.Errorf("generate secret: unsupported purpose %q", purpose)
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", model.PendingSecret{}, fmt.Errorf("generate secret: %w", err)
	}

	plain := secretEncoding.EncodeToString(buf)
	return plain, model.PendingSecret{
		Hash:     HashSecret(plain),
		Purpose:  purpose,
		IssuedAt: s.now().UTC(),
	}, nil
}

// Issue generates a secret and stores its hash on the user record, replacing
// any secret issued before.
func (s *SecretTokens) Issue(ctx context.Context, user model.User, purpose model.Purpose) (string, error) {
	plain, pending, err := s.Generate(purpose)
	if err != nil {
		return "", err
	}

	if err := s.store.StoreSecret(ctx, user.ID, pending); err != nil {
		return "", fmt.Errorf("store %s secret: %w", purpose, err)
	}
	return plain, nil
}

// Consume clears the pending secret of user when provided matches and is still
// inside its validity window. Two concurrent calls with the same secret yield
// exactly one success.
func (s *SecretTokens) Consume(ctx context.Context, user model.User, purpose model.Purpose, provided string, effect Effect) (model.User, error) {
	ttl, ok := s.ttl[purpose]
	if !ok {
		return model.User{}, fmt.Errorf("consume secret: unsupported purpose %q", purpose)
	}

	return s.store.ConsumeSecret(ctx, model.ConsumeSecret{
		UserID:       user.ID,
		Purpose:      purpose,
		Hash:         HashSecret(provided),
		IssuedAfter:  s.now().UTC().Add(-ttl),
		MarkVerified: effect.MarkVerified,
		NewPassword:  effect.NewPassword,
	})
}

// HashSecret normalizes a secret as typed by a user and returns its SHA-256
// hex digest.
func HashSecret(secret string) string {
	normalized := strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
