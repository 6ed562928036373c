package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
)

func newMemoryRepo(t *testing.T) *MemoryUserRepository {
	t.Helper()
	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return NewMemoryUserRepository(hasher)
}

func sampleUser() model.NewUser {
	return model.NewUser{
		Firstname: "A",
		Lastname:  "B",
		Username:  "a",
		Email:     "A@x.com",
		Password:  "password123",
		Settings:  map[string]any{"theme": "dark"},
	}
}

func TestMemoryUserRepository_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hashes the password and normalizes the email", func(t *testing.T) {
		repo := newMemoryRepo(t)

		u, err := repo.Create(ctx, sampleUser())
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", u.Email)
		assert.NotEqual(t, "password123", u.PasswordHash)
		assert.True(t, password.Compare(u.PasswordHash, "password123"))
	})

	t.Run("federated users carry no password hash", func(t *testing.T) {
		repo := newMemoryRepo(t)

		nu := sampleUser()
		nu.Password = ""
		nu.Provider = "google"
		u, err := repo.Create(ctx, nu)
		require.NoError(t, err)
		assert.Empty(t, u.PasswordHash)
		assert.True(t, u.IsFederated())
	})

	t.Run("duplicate identity names every collided field", func(t *testing.T) {
		repo := newMemoryRepo(t)
		_, err := repo.Create(ctx, sampleUser())
		require.NoError(t, err)

		nu := sampleUser()
		nu.Username = "other"
		_, err = repo.Create(ctx, nu)
		require.ErrorIs(t, err, model.ErrDuplicateIdentity)
		assert.Contains(t, err.Error(), "email")
		assert.NotContains(t, err.Error(), "username")

		_, err = repo.Create(ctx, sampleUser())
		var dup *model.DuplicateIdentityError
		require.True(t, errors.As(err, &dup))
		assert.True(t, dup.Email)
		assert.True(t, dup.Username)
		assert.Equal(t, "a user with the specified email and username exists", err.Error())
	})

	t.Run("concurrent registrations of one identity create one user", func(t *testing.T) {
		repo := newMemoryRepo(t)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				nu := sampleUser()
				nu.Username = fmt.Sprintf("user-%d", i)
				_, err := repo.Create(ctx, nu)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, model.ErrDuplicateIdentity)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, repo.Count())
	})
}

func TestMemoryUserRepository_Lookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newMemoryRepo(t)

	created, err := repo.Create(ctx, sampleUser())
	require.NoError(t, err)

	for _, identifier := range []string{"a@x.com", " A@X.COM ", "a", "A"} {
		u, err := repo.FindByIdentifier(ctx, identifier)
		require.NoError(t, err, identifier)
		assert.Equal(t, created.ID, u.ID)
	}

	_, err = repo.FindByIdentifier(ctx, "nobody")
	require.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = repo.FindByID(ctx, "missing")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestMemoryUserRepository_UpdateFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newMemoryRepo(t)

	created, err := repo.Create(ctx, sampleUser())
	require.NoError(t, err)

	loggedIn := true
	newPassword := "another-password"
	updated, err := repo.UpdateFields(ctx, created.ID, model.UserPatch{
		IsLogin:  &loggedIn,
		Password: &newPassword,
		Settings: map[string]any{"lang": "en"},
	})
	require.NoError(t, err)

	assert.True(t, updated.IsLogin)
	assert.Equal(t, map[string]any{"theme": "dark", "lang": "en"}, updated.Settings)
	assert.True(t, password.Compare(updated.PasswordHash, newPassword))

	updated.Settings["theme"] = "light"
	reloaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "dark", reloaded.Settings["theme"])

	_, err = repo.UpdateFields(ctx, "missing", model.UserPatch{})
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestMemoryUserRepository_ConsumeSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	issued := time.Now().UTC()
	pending := func(t *testing.T) (*MemoryUserRepository, model.User) {
		repo := newMemoryRepo(t)
		expires := issued.Add(72 * time.Hour)
		nu := sampleUser()
		nu.AccountExpires = &expires
		nu.Secret = &model.PendingSecret{Hash: "h1", Purpose: model.PurposeAccountVerification, IssuedAt: issued}
		u, err := repo.Create(ctx, nu)
		require.NoError(t, err)
		require.True(t, u.IsPending())
		return repo, u
	}

	params := func(u model.User) model.ConsumeSecret {
		return model.ConsumeSecret{
			UserID:       u.ID,
			Purpose:      model.PurposeAccountVerification,
			Hash:         "h1",
			IssuedAfter:  issued.Add(-time.Hour),
			MarkVerified: true,
		}
	}

	t.Run("transition and clear happen together", func(t *testing.T) {
		repo, u := pending(t)

		verified, err := repo.ConsumeSecret(ctx, params(u))
		require.NoError(t, err)
		assert.Equal(t, model.StateVerified, verified.State())
		assert.True(t, verified.EmailVerified)
		assert.Empty(t, verified.ResetTokenHash)
		assert.Empty(t, verified.ResetPurpose)
		assert.Nil(t, verified.ResetDate)
	})

	t.Run("classifies failures", func(t *testing.T) {
		repo, u := pending(t)

		p := params(u)
		p.Hash = "h2"
		_, err := repo.ConsumeSecret(ctx, p)
		require.ErrorIs(t, err, model.ErrTokenMismatch)

		p = params(u)
		p.IssuedAfter = issued.Add(time.Second)
		_, err = repo.ConsumeSecret(ctx, p)
		require.ErrorIs(t, err, model.ErrTokenExpired)

		p = params(u)
		p.Purpose = model.PurposePasswordReset
		_, err = repo.ConsumeSecret(ctx, p)
		require.ErrorIs(t, err, model.ErrNoPendingToken)

		reloaded, err := repo.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsPending())
		assert.Equal(t, "h1", reloaded.ResetTokenHash)
	})

	t.Run("second consumption finds nothing pending", func(t *testing.T) {
		repo, u := pending(t)

		_, err := repo.ConsumeSecret(ctx, params(u))
		require.NoError(t, err)
		_, err = repo.ConsumeSecret(ctx, params(u))
		require.ErrorIs(t, err, model.ErrNoPendingToken)
	})
}
