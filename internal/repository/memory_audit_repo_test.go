package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-account-auth/internal/model"
)

func TestMemoryAuditRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("recent is newest first and filtered by actor", func(t *testing.T) {
		repo := NewMemoryAuditRepository(10)
		require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "user.created", ActorID: "a"}))
		require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "user.created", ActorID: "b"}))
		require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "user.signed_in", ActorID: "a"}))

		entries, err := repo.Recent(ctx, "a", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "user.signed_in", entries[0].Action)
		assert.Equal(t, "user.created", entries[1].Action)
		assert.False(t, entries[0].OccurredAt.IsZero())
	})

	t.Run("capacity drops the oldest entries", func(t *testing.T) {
		repo := NewMemoryAuditRepository(3)
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: fmt.Sprintf("e%d", i), ActorID: "a"}))
		}

		entries, err := repo.Recent(ctx, "a", 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "e4", entries[0].Action)
		assert.Equal(t, "e2", entries[2].Action)
	})

	t.Run("limit", func(t *testing.T) {
		repo := NewMemoryAuditRepository(0)
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: "x", ActorID: "a"}))
		}
		entries, err := repo.Recent(ctx, "a", 2)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}
