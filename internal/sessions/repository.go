package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records an issued session.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	const q = `INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, q, userID, token, expiresAt)
	return err
}

// DeactivateExpired flips is_active off for sessions past their expiry and
// returns how many were revoked.
func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE sessions SET is_active = FALSE WHERE is_active AND expires_at < $1`
	tag, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
