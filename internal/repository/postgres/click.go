package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/ses-gateway/internal/domain"
)

// ClickRepo persists click events.
type ClickRepo struct{ db *sql.DB }

// NewClickRepo creates a Postgres-backed click event repository.
func NewClickRepo(db *sql.DB) *ClickRepo { return &ClickRepo{db: db} }

// Insert appends one click. Every click is stored, repeats included.
func (r *ClickRepo) Insert(ctx context.Context, c *domain.ClickEvent) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO click_events (id, message_id, url, clicked_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING clicked_at
	`, c.ID, c.MessageID, c.URL).Scan(&c.ClickedAt)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// ListByMessage returns all clicks for a message, oldest first.
func (r *ClickRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.ClickEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, url, clicked_at
		FROM click_events
		WHERE message_id = $1
		ORDER BY clicked_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	defer rows.Close()

	var out []domain.ClickEvent
	for rows.Next() {
		var c domain.ClickEvent
		if err := rows.Scan(&c.ID, &c.MessageID, &c.URL, &c.ClickedAt); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByMessage returns the total number of clicks recorded for a message.
func (r *ClickRepo) CountByMessage(ctx context.Context, messageID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM click_events WHERE message_id = $1`, messageID,
	).Scan(&n)
	return n, err
}
