package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores sessions in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("sessions: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, patient_id, doctor_id, therapy_type, start_time, end_time, status, notes, progress, follow_up, created_at, updated_at`

// Create inserts a new row with store-managed id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, s *Session) (*Session, error) {
	query := `
		INSERT INTO sessions (id, patient_id, doctor_id, therapy_type, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + sessionColumns
	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		s.PatientID,
		s.DoctorID,
		s.TherapyType,
		s.StartTime,
		s.EndTime,
		s.Status,
		s.Notes,
	)
	created, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("sessions: insert failed: %w", err)
	}
	return created, nil
}

// List fetches sessions for one party, ordered ascending by start_time.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	args := []any{}
	n := 0
	next := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if f.PatientID != "" {
		query += ` AND patient_id = ` + next(f.PatientID)
	}
	if f.DoctorID != "" {
		query += ` AND doctor_id = ` + next(f.DoctorID)
	}
	if f.From != nil {
		query += ` AND start_time >= ` + next(*f.From)
	}
	if f.To != nil {
		query += ` AND start_time <= ` + next(*f.To)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sessions: select failed: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sessions: scan failed: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: rows failed: %w", err)
	}
	return out, nil
}

// UpdateStatus performs the combined ownership/existence update. The owner
// predicate keeps a foreign session indistinguishable from a missing one.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, owner OwnerFilter, status Status) (*Session, error) {
	column, ownerID, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	query := `
		UPDATE sessions SET status = $3, updated_at = now()
		WHERE id = $1 AND ` + column + ` = $2
		RETURNING ` + sessionColumns
	row := r.pool.QueryRow(ctx, query, id, ownerID, status)
	updated, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("sessions: status update failed: %w", err)
	}
	return updated, nil
}

// UpdateTreatment sets the doctor-editable fields on an owned session.
// Empty notes leave the stored notes untouched.
func (r *PostgresRepository) UpdateTreatment(ctx context.Context, id, doctorID string, req *UpdateProgressRequest) (*Session, error) {
	query := `
		UPDATE sessions SET
			notes = CASE WHEN $3 = '' THEN notes ELSE $3 END,
			progress = COALESCE($4, progress),
			follow_up = COALESCE($5, follow_up),
			updated_at = now()
		WHERE id = $1 AND doctor_id = $2
		RETURNING ` + sessionColumns
	row := r.pool.QueryRow(ctx, query, id, doctorID, req.Notes, req.Progress, req.FollowUp)
	updated, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("sessions: treatment update failed: %w", err)
	}
	return updated, nil
}

// HasOverlap reports whether a non-cancelled session for the doctor
// intersects [start, end).
func (r *PostgresRepository) HasOverlap(ctx context.Context, doctorID string, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE doctor_id = $1 AND status <> 'cancelled'
			AND start_time < $3 AND end_time > $2
		)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, doctorID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("sessions: overlap check failed: %w", err)
	}
	return exists, nil
}

func ownerColumn(owner OwnerFilter) (string, string, error) {
	switch {
	case owner.PatientID != "":
		return "patient_id", owner.PatientID, nil
	case owner.DoctorID != "":
		return "doctor_id", owner.DoctorID, nil
	}
	return "", "", ErrSessionNotFound
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.DoctorID,
		&s.TherapyType,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.Notes,
		&s.Progress,
		&s.FollowUp,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
