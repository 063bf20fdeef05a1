package recordings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callcoach/backend/internal/models"
)

const recordingColumns = `id, user_id, appointment_id, title,
	file_name, file_url, file_size, duration, format,
	recorded_at, COALESCE(device_type,'unknown'), COALESCE(platform,'unknown'),
	analysis, created_at, updated_at`

// ListFilter narrows a user's recording listing.
type ListFilter struct {
	AppointmentID *uuid.UUID
	// Analyzed=true selects analysis status completed; Analyzed=false selects
	// every other status, including failed.
	Analyzed *bool
	Limit    int
	Offset   int
}

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new recording.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	const q = `INSERT INTO recordings
		(user_id, appointment_id, title, file_name, file_url, file_size, duration, format, recorded_at, device_type, platform, analysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		rec.UserID, rec.AppointmentID, rec.Title,
		rec.Audio.FileName, rec.Audio.FileURL, rec.Audio.FileSize, rec.Audio.Duration, rec.Audio.Format,
		rec.Metadata.RecordedAt, rec.Metadata.DeviceType, rec.Metadata.Platform,
		analysis,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	var analysis []byte
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.AppointmentID, &rec.Title,
		&rec.Audio.FileName, &rec.Audio.FileURL, &rec.Audio.FileSize, &rec.Audio.Duration, &rec.Audio.Format,
		&rec.Metadata.RecordedAt, &rec.Metadata.DeviceType, &rec.Metadata.Platform,
		&analysis, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &rec.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
	}
	return &rec, nil
}

// ListByUser returns a page of the user's recordings, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.AppointmentID != nil {
		args = append(args, *filter.AppointmentID)
		q += fmt.Sprintf(" AND appointment_id = $%d", len(args))
	}
	if filter.Analyzed != nil {
		if *filter.Analyzed {
			q += ` AND analysis->>'status' = 'completed'`
		} else {
			q += ` AND analysis->>'status' <> 'completed'`
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// GetByUser returns the user's recording by ID. Absence and wrong ownership
// are indistinguishable: both return nil.
func (r *Repository) GetByUser(ctx context.Context, userID, id uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1 AND user_id = $2`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// GetByID returns a recording regardless of owner. Worker use only.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// UpdateAnalysis replaces the analysis block.
func (r *Repository) UpdateAnalysis(ctx context.Context, id uuid.UUID, a models.Analysis) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	const q = `UPDATE recordings SET analysis = $1, updated_at = NOW() WHERE id = $2`
	_, err = r.pool.Exec(ctx, q, body, id)
	return err
}

// SetAnalysisStatus updates only the analysis status field.
func (r *Repository) SetAnalysisStatus(ctx context.Context, id uuid.UUID, status models.AnalysisStatus) error {
	const q = `UPDATE recordings SET analysis = jsonb_set(analysis, '{status}', to_jsonb($1::text)), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, string(status), id)
	return err
}

// ConfirmUpload records the observed object size and duration for a recording
// whose upload this service never proxied.
func (r *Repository) ConfirmUpload(ctx context.Context, id uuid.UUID, fileSize int64, duration int) error {
	const q = `UPDATE recordings SET file_size = $1, duration = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, fileSize, duration, id)
	return err
}
