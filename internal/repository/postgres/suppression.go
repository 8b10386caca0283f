package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/ses-gateway/internal/domain"
	"github.com/ignite/ses-gateway/internal/suppression"
)

// SuppressionRepo persists the suppression list.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

// Insert adds a suppression if the address is not already present. The
// uniqueness conflict is swallowed by ON CONFLICT DO NOTHING so a race
// between two escalations for the same address is success for both; the
// return value reports whether this call created the row.
func (r *SuppressionRepo) Insert(ctx context.Context, s *domain.Suppression) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO suppressions (id, email, reason, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (email) DO NOTHING
	`, s.ID, s.Email, s.Reason)
	if err != nil {
		return false, fmt.Errorf("insert suppression: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get fetches a suppression by normalized address. Returns (nil, nil) when
// the address is not suppressed.
func (r *SuppressionRepo) Get(ctx context.Context, email string) (*domain.Suppression, error) {
	var s domain.Suppression
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, reason, created_at FROM suppressions WHERE email = $1
	`, email).Scan(&s.ID, &s.Email, &s.Reason, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get suppression: %w", err)
	}
	return &s, nil
}

// Delete removes a suppression, reporting whether a row existed.
func (r *SuppressionRepo) Delete(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM suppressions WHERE email = $1`, email)
	if err != nil {
		return false, fmt.Errorf("delete suppression: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns suppressions newest-first with the total matching count.
func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	where := ""
	args := []any{}
	if f.Reason != "" {
		where = "WHERE reason = $1"
		args = append(args, f.Reason)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppressions `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT id, email, reason, created_at
		FROM suppressions %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suppression
	for rows.Next() {
		var s domain.Suppression
		if err := rows.Scan(&s.ID, &s.Email, &s.Reason, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
