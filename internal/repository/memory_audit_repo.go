package repository

import (
	"context"
	"sync"
	"time"

	"go-account-auth/internal/model"
)

// MemoryAuditRepository keeps the most recent audit entries in a bounded
// in-process log.
type MemoryAuditRepository struct {
	mu       sync.RWMutex
	entries  []model.AuditEntry
	capacity int
}

func NewMemoryAuditRepository(capacity int) *MemoryAuditRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryAuditRepository{capacity: capacity}
}

func (r *MemoryAuditRepository) Log(_ context.Context, entry model.AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	if over := len(r.entries) - r.capacity; over > 0 {
		r.entries = append([]model.AuditEntry(nil), r.entries[over:]...)
	}
	return nil
}

func (r *MemoryAuditRepository) Recent(_ context.Context, actorID string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.AuditEntry, 0)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].ActorID == actorID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}
