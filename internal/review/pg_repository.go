package review

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func newPgRepositoryWithDB(db querier) *PgRepository {
	return &PgRepository{db: db}
}

func scanReview(row pgx.Row) (*Review, error) {
	var r Review

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.PatientID,
		&r.Rating,
		&r.Comment,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, rating, comment, status, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`, id)
	return scanReview(row)
}

func (r *PgRepository) Create(ctx context.Context, appointmentID, patientID uuid.UUID, rating int16, comment string) (*Review, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO reviews (id, appointment_id, patient_id, rating, comment, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', now(), now())
		RETURNING id, appointment_id, patient_id, rating, comment, status, created_at, updated_at
	`, id, appointmentID, patientID, rating, comment)

	rev, err := scanReview(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateReview
		}
		return nil, err
	}
	return rev, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Review, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE reviews
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, appointment_id, patient_id, rating, comment, status, created_at, updated_at
	`, id, to)
	return scanReview(row)
}

func (r *PgRepository) ListByProfessional(ctx context.Context, professionalID uuid.UUID, onlyApproved bool) ([]Review, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.appointment_id, r.patient_id, r.rating, r.comment, r.status, r.created_at, r.updated_at
		FROM reviews r
		JOIN appointments a ON a.id = r.appointment_id
		WHERE a.professional_id = $1
		  AND ($2 = FALSE OR r.status = 'approved')
		ORDER BY r.created_at DESC
	`, professionalID, onlyApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) RatingSummary(ctx context.Context, professionalID uuid.UUID) (*RatingSummary, error) {
	summary := RatingSummary{ProfessionalID: professionalID}

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(r.rating), 0), COUNT(r.id)
		FROM reviews r
		JOIN appointments a ON a.id = r.appointment_id
		WHERE a.professional_id = $1
		  AND r.status = 'approved'
	`, professionalID).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
