// Package audit persists a trail of credential and key lifecycle events
// (registrations, signing-key rotations) so operators can answer "who did
// what, when" without trawling service logs.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/services/auth-service/internal/outbox"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends an audit row. actorID and actorRole may be empty when the
// action is not attributable (startup rotation, operator tooling).
func (r *Repository) Record(ctx context.Context, eventType, actorID, actorRole string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_id, actor_role, metadata)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
	`, eventType, actorID, actorRole, raw)
	return err
}

// RecordWithOutbox writes the audit row and an auth.audit.v1 outbox event in
// one transaction, so downstream consumers see exactly the rows the trail has.
func (r *Repository) RecordWithOutbox(ctx context.Context, outboxRepo *outbox.Repository, eventType, actorID, actorRole string, metadata map[string]any) error {
	if outboxRepo == nil {
		return r.Record(ctx, eventType, actorID, actorRole, metadata)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_id, actor_role, metadata)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
	`, eventType, actorID, actorRole, raw)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"event_type": eventType,
		"actor_id":   actorID,
		"actor_role": actorRole,
		"metadata":   metadata,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "audit_event",
		AggregateID:   "auth",
		EventType:     "auth.audit.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type AuditEvent struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	ActorRole string          `json:"actor_role,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

// ListRecent returns the newest audit rows, optionally narrowed to a single
// event type (e.g. "jwt.rotate").
func (r *Repository) ListRecent(ctx context.Context, eventType string, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, COALESCE(actor_id::text, ''), COALESCE(actor_role, ''), metadata, created_at
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY id DESC
		LIMIT $2
	`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.EventType, &e.ActorID, &e.ActorRole, &e.Metadata, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}
