package appointments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callcoach/backend/internal/models"
)

// Repository handles appointment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an appointments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new appointment.
func (r *Repository) Create(ctx context.Context, a *models.Appointment) error {
	const q = `INSERT INTO appointments (user_id, title, customer_name, scheduled_at)
		VALUES ($1, $2, NULLIF($3,''), $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, a.UserID, a.Title, a.CustomerName, a.ScheduledAt).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID returns an appointment by ID, or nil when none exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	const q = `SELECT id, user_id, title, COALESCE(customer_name,''), scheduled_at, created_at, updated_at
		FROM appointments WHERE id = $1`
	var a models.Appointment
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&a.ID, &a.UserID, &a.Title, &a.CustomerName, &a.ScheduledAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListByUser returns a user's appointments, most recent first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Appointment, error) {
	const q = `SELECT id, user_id, title, COALESCE(customer_name,''), scheduled_at, created_at, updated_at
		FROM appointments WHERE user_id = $1 ORDER BY scheduled_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.CustomerName, &a.ScheduledAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
