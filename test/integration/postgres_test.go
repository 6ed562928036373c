//go:build integration

package integration

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
	"go-account-auth/internal/repository"
	"go-account-auth/internal/token"
)

func TestUserRepositoryCreateAndLookup(t *testing.T) {
	db := newPostgres(t)
	repo := newUserRepository(t, db)
	ctx := context.Background()

	nu := uniqueUser()
	created, err := repo.Create(ctx, nu)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(nu.Email), created.Email)
	assert.True(t, password.Compare(created.PasswordHash, nu.Password))

	byEmail, err := repo.FindByEmail(ctx, strings.ToUpper(nu.Email))
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byUsername, err := repo.FindByIdentifier(ctx, nu.Username)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUsername.ID)

	_, err = repo.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = repo.Create(ctx, nu)
	var dup *model.DuplicateIdentityError
	require.ErrorAs(t, err, &dup)
	assert.True(t, dup.Email)
	assert.True(t, dup.Username)
}

func TestUserRepositoryUpdateFieldsMergesSettings(t *testing.T) {
	db := newPostgres(t)
	repo := newUserRepository(t, db)
	ctx := context.Background()

	nu := uniqueUser()
	nu.Settings = map[string]any{"theme": "light", "lang": "en"}
	created, err := repo.Create(ctx, nu)
	require.NoError(t, err)

	loggedIn := true
	updated, err := repo.UpdateFields(ctx, created.ID, model.UserPatch{
		IsLogin:  &loggedIn,
		Settings: map[string]any{"theme": "dark"},
	})
	require.NoError(t, err)
	assert.True(t, updated.IsLogin)
	assert.Equal(t, "dark", updated.Settings["theme"])
	assert.Equal(t, "en", updated.Settings["lang"])
}

func TestSecretConsumptionIsSingleUse(t *testing.T) {
	db := newPostgres(t)
	repo := newUserRepository(t, db)
	ctx := context.Background()
	secrets := token.NewSecretTokens(repo, 24*time.Hour, time.Hour)

	nu := uniqueUser()
	expires := time.Now().Add(72 * time.Hour)
	nu.AccountExpires = &expires
	user, err := repo.Create(ctx, nu)
	require.NoError(t, err)

	plain, err := secrets.Issue(ctx, user, model.PurposeAccountVerification)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := secrets.Consume(ctx, user, model.PurposeAccountVerification, plain, token.Effect{MarkVerified: true}); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())

	verified, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, verified.IsPending())
	assert.True(t, verified.EmailVerified)
	assert.Empty(t, verified.ResetTokenHash)
}

func TestAuditRepositoryRecent(t *testing.T) {
	db := newPostgres(t)
	users := newUserRepository(t, db)
	audit := repository.NewAuditRepository(db.Pool)
	ctx := context.Background()

	user, err := users.Create(ctx, uniqueUser())
	require.NoError(t, err)

	require.NoError(t, audit.Log(ctx, model.AuditEntry{Action: "user.created", ActorID: user.ID, OccurredAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, audit.Log(ctx, model.AuditEntry{Action: "user.signed_in", ActorID: user.ID, Payload: map[string]any{"remember_me": true}}))
	require.NoError(t, audit.Log(ctx, model.AuditEntry{Action: "mail.undelivered"}))

	entries, err := audit.Recent(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user.signed_in", entries[0].Action)
	assert.Equal(t, true, entries[0].Payload["remember_me"])
	assert.Equal(t, user.ID, entries[1].ActorID)
}

func TestHealth(t *testing.T) {
	db := newPostgres(t)
	assert.NoError(t, db.Health(context.Background()))
}
