package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
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

// Helpers

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.ConsultationFeeCents,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start, end int16

	err := row.Scan(
		&a.ID,
		&a.ProfessionalID,
		&a.PatientID,
		&a.Date,
		&start,
		&end,
		&a.Status,
		&a.MeetingRef,
		&a.PaymentConfirmed,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = schedule.MinuteOfDay(start)
	a.End = schedule.MinuteOfDay(end)
	return &a, nil
}

// appointmentColumns joins payments so payment_confirmed is always computed
// from the ledger, never stored.
const appointmentColumns = `
	a.id, a.professional_id, a.patient_id, a.date, a.start_minute, a.end_minute,
	a.status, a.meeting_ref,
	COALESCE(p.status = 'approved', FALSE) AS payment_confirmed,
	a.created_at, a.updated_at
`

// Interface methods

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_fee_cents, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN payments p ON p.appointment_id = a.id
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListBookedOnDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN payments p ON p.appointment_id = a.id
		WHERE a.professional_id = $1
		  AND a.date = $2
		  AND a.status <> 'cancelled'
		ORDER BY a.start_minute
	`, professionalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, professionalID, patientID uuid.UUID, date time.Time, start, end schedule.MinuteOfDay, meetingRef string) (*Appointment, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, professional_id, patient_id, date, start_minute, end_minute, status, meeting_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, now(), now())
		RETURNING id, professional_id, patient_id, date, start_minute, end_minute, status, meeting_ref, FALSE, created_at, updated_at
	`, id, professionalID, patientID, date, int16(start), int16(end), meetingRef)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "appointments_meeting_ref_key" {
			return nil, ErrMeetingRefTaken
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error) {
	fromList := make([]string, len(from))
	for i, s := range from {
		fromList[i] = string(s)
	}

	row := r.db.QueryRow(ctx, `
		WITH updated AS (
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = ANY($3)
			RETURNING id, professional_id, patient_id, date, start_minute, end_minute,
			          status, meeting_ref, created_at, updated_at
		)
		SELECT u.id, u.professional_id, u.patient_id, u.date, u.start_minute, u.end_minute,
		       u.status, u.meeting_ref,
		       COALESCE(p.status = 'approved', FALSE) AS payment_confirmed,
		       u.created_at, u.updated_at
		FROM updated u
		LEFT JOIN payments p ON p.appointment_id = u.id
	`, id, to, fromList)

	return scanAppointment(row)
}
