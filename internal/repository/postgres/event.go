package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/ses-gateway/internal/domain"
)

// EventRepo persists the append-only event audit trail.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Insert appends one event row. Rows are never updated or deleted; duplicate
// notifications produce duplicate rows by design.
func (r *EventRepo) Insert(ctx context.Context, ev *domain.Event) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events (id, message_id, event_type, bounce_type, bounce_reason,
			delay_type, delay_reason, raw_payload, timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`, ev.ID, ev.MessageID, ev.Type, ev.BounceType, ev.BounceReason,
		ev.DelayType, ev.DelayReason, []byte(ev.RawPayload), ev.Timestamp,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListByMessage returns all events for a message, oldest first.
func (r *EventRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, event_type, bounce_type, bounce_reason,
		       delay_type, delay_reason, raw_payload, timestamp, created_at
		FROM events
		WHERE message_id = $1
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var raw []byte
		if err := rows.Scan(&ev.ID, &ev.MessageID, &ev.Type, &ev.BounceType,
			&ev.BounceReason, &ev.DelayType, &ev.DelayReason, &raw,
			&ev.Timestamp, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.RawPayload = raw
		out = append(out, ev)
	}
	return out, rows.Err()
}
