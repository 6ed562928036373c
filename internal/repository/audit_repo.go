package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-account-auth/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	var payload []byte
	if entry.Payload != nil {
		var err error
		payload, err = json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
	}

	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries (action, actor_user_id, occurred_at, payload)
		 VALUES ($1, NULLIF($2, '')::uuid, $3, $4)`,
		entry.Action, entry.ActorID, occurredAt, payload)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

// Recent returns the latest entries recorded for actorID, newest first.
func (r *AuditRepository) Recent(ctx context.Context, actorID string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT action, COALESCE(actor_user_id::text, ''), occurred_at, payload
		 FROM audit_entries
		 WHERE actor_user_id = $1::uuid
		 ORDER BY occurred_at DESC
		 LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var (
			e       model.AuditEntry
			payload []byte
		)
		if err := rows.Scan(&e.Action, &e.ActorID, &e.OccurredAt, &payload); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(payload) > 0 {
			if jsonErr := json.Unmarshal(payload, &e.Payload); jsonErr != nil {
				e.Payload = nil
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
