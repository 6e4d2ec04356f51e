package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the repository needs. Tests inject a
// pgxmock pool through newPgRepositoryWithDB.
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

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var weekday int16
	var start, end int16

	err := row.Scan(
		&s.ID,
		&s.ProfessionalID,
		&weekday,
		&start,
		&end,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Weekday = time.Weekday(weekday)
	s.Start = MinuteOfDay(start)
	s.End = MinuteOfDay(end)
	return &s, nil
}

func (r *PgRepository) CreateSlot(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday, start, end MinuteOfDay) (*Slot, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO availability_slots (id, professional_id, weekday, start_minute, end_minute, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, now(), now())
		RETURNING id, professional_id, weekday, start_minute, end_minute, active, created_at, updated_at
	`, id, professionalID, int16(weekday), int16(start), int16(end))

	slot, err := scanSlot(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return slot, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, professional_id, weekday, start_minute, end_minute, active, created_at, updated_at
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) DeactivateSlot(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE availability_slots
		SET active = FALSE,
		    updated_at = now()
		WHERE id = $1
		  AND active
	`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Either already inactive (fine, idempotent) or missing.
		if _, err := r.GetSlotByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *PgRepository) ListSlots(ctx context.Context, professionalID uuid.UUID) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, professional_id, weekday, start_minute, end_minute, active, created_at, updated_at
		FROM availability_slots
		WHERE professional_id = $1
		ORDER BY weekday, start_minute
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) ListActiveSlots(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, professional_id, weekday, start_minute, end_minute, active, created_at, updated_at
		FROM availability_slots
		WHERE professional_id = $1
		  AND weekday = $2
		  AND active
		ORDER BY start_minute
	`, professionalID, int16(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
