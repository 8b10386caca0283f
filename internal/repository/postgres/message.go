// Package postgres implements the gateway's repositories against PostgreSQL
// using database/sql and the lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/ses-gateway/internal/domain"
)

// MessageRepo persists and mutates messages.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `id, to_email, from_email, from_name, subject, html_body, text_body,
	status, provider_message_id, metadata, opened_at, first_deferred_at, created_at, updated_at`

// Insert stores a newly created message. The caller owns id generation; the
// timestamps come from the database.
func (r *MessageRepo) Insert(ctx context.Context, m *domain.Message) error {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, to_email, from_email, from_name, subject, html_body,
			text_body, status, provider_message_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`, m.ID, m.ToEmail, m.FromEmail, m.FromName, m.Subject, m.HTMLBody,
		m.TextBody, m.Status, m.ProviderMessageID, meta,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetByID fetches a message by internal id. Returns (nil, nil) when absent.
func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

// GetByProviderID fetches a message by the provider correlation id assigned
// at send time. The caller normalizes angle brackets before lookup.
// Returns (nil, nil) when absent.
func (r *MessageRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE provider_message_id = $1`, providerID)
	return scanMessage(row)
}

// SetProviderMessageID records the correlation id returned by the provider
// after a successful send.
func (r *MessageRepo) SetProviderMessageID(ctx context.Context, id uuid.UUID, providerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET provider_message_id = $2, updated_at = NOW() WHERE id = $1`,
		id, providerID)
	if err != nil {
		return fmt.Errorf("set provider message id: %w", err)
	}
	return nil
}

// TransitionStatus atomically moves a message to `to` if its current status
// is one of `from`. The single conditional UPDATE is what serializes two
// events for the same message arriving in concurrent handlers.
func (r *MessageRepo) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.MessageStatus, from ...domain.MessageStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, pq.Array(allowed))
	if err != nil {
		return false, fmt.Errorf("transition message %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDeferred moves a sent message to deferred. The first-deferred
// timestamp is set at most once via COALESCE.
func (r *MessageRepo) MarkDeferred(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'deferred',
		    first_deferred_at = COALESCE(first_deferred_at, NOW()),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'sent'
	`, id)
	if err != nil {
		return false, fmt.Errorf("defer message %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkOpened sets the first-open timestamp if it is currently unset,
// reporting whether this call won. Safe under concurrent duplicate pixel
// requests: only one UPDATE can match the IS NULL predicate.
func (r *MessageRepo) MarkOpened(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET opened_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND opened_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark message %s opened: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountCreatedSince counts messages created after the given instant. The
// rate limiter uses it for the trailing-window send count.
func (r *MessageRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at > $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages since %s: %w", since, err)
	}
	return n, nil
}

// List returns messages newest-first with the total count for pagination.
func (r *MessageRepo) List(ctx context.Context, limit, offset int) ([]domain.Message, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// DeliveryStats aggregates lifecycle counts over a trailing window.
type DeliveryStats struct {
	TotalSent  int `json:"total_sent"`
	Delivered  int `json:"delivered"`
	Bounced    int `json:"bounced"`
	Deferred   int `json:"deferred"`
	Complained int `json:"complained"`
	Opened     int `json:"opened"`
	Clicked    int `json:"clicked_messages"`
}

// Stats computes delivery and engagement counts for messages created after
// the given instant.
func (r *MessageRepo) Stats(ctx context.Context, since time.Time) (*DeliveryStats, error) {
	var s DeliveryStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'delivered'),
		       COUNT(*) FILTER (WHERE status = 'bounced'),
		       COUNT(*) FILTER (WHERE status = 'deferred'),
		       COUNT(*) FILTER (WHERE status = 'complained'),
		       COUNT(*) FILTER (WHERE opened_at IS NOT NULL),
		       COUNT(DISTINCT c.message_id)
		FROM messages m
		LEFT JOIN click_events c ON c.message_id = m.id
		WHERE m.created_at > $1
	`, since).Scan(&s.TotalSent, &s.Delivered, &s.Bounced, &s.Deferred,
		&s.Complained, &s.Opened, &s.Clicked)
	if err != nil {
		return nil, fmt.Errorf("message stats: %w", err)
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row *sql.Row) (*domain.Message, error) {
	m, err := scanMessageRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func scanMessageRow(row rowScanner) (*domain.Message, error) {
	var m domain.Message
	var fromName, htmlBody, textBody, providerID sql.NullString
	var meta []byte
	err := row.Scan(&m.ID, &m.ToEmail, &m.FromEmail, &fromName, &m.Subject,
		&htmlBody, &textBody, &m.Status, &providerID, &meta,
		&m.OpenedAt, &m.FirstDeferredAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.FromName = fromName.String
	m.HTMLBody = htmlBody.String
	m.TextBody = textBody.String
	m.ProviderMessageID = providerID.String
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &m, nil
}
