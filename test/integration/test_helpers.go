//go:build integration

package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-account-auth/internal/database"
	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
	"go-account-auth/internal/repository"
)

// newPostgres connects to INTEGRATION_DATABASE_URL and applies the schema.
func newPostgres(t *testing.T) *database.DB {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("INTEGRATION_DATABASE_URL"))
	if url == "" {
		t.Skip("INTEGRATION_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, url, 8, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func newUserRepository(t *testing.T, db *database.DB) *repository.UserRepository {
	t.Helper()

	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return repository.NewUserRepository(db.Pool, hasher)
}

// uniqueUser returns a local account whose identifiers do not collide with
// earlier runs against the same database.
func uniqueUser() model.NewUser {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return model.NewUser{
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Username:  "ada" + suffix,
		Email:     "Ada." + suffix + "@Example.com",
		Password:  "password123",
	}
}
