package payment

import (
	"context"
	"errors"
	"time"

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

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var approvedAt *time.Time

	err := row.Scan(
		&p.TxnID,
		&p.AppointmentID,
		&p.AmountCents,
		&p.Method,
		&p.Status,
		&approvedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	p.ApprovedAt = approvedAt
	return &p, nil
}

func (r *PgRepository) GetByTxnID(ctx context.Context, txnID string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT txn_id, appointment_id, amount_cents, method, status, approved_at, created_at, updated_at
		FROM payments
		WHERE txn_id = $1
	`, txnID)
	return scanPayment(row)
}

func (r *PgRepository) GetConsultationFeeCents(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	var fee int64
	err := r.db.QueryRow(ctx, `
		SELECT p.consultation_fee_cents
		FROM appointments a
		JOIN professionals p ON p.id = a.professional_id
		WHERE a.id = $1
	`, appointmentID).Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAppointmentNotFound
		}
		return 0, err
	}
	return fee, nil
}

func (r *PgRepository) CreatePending(ctx context.Context, txnID string, appointmentID uuid.UUID, amountCents int64, method Method) (*Payment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO payments (txn_id, appointment_id, amount_cents, method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', now(), now())
		RETURNING txn_id, appointment_id, amount_cents, method, status, approved_at, created_at, updated_at
	`, txnID, appointmentID, amountCents, method)

	p, err := scanPayment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, ErrPaymentExists
			case "23503":
				return nil, ErrAppointmentNotFound
			}
		}
		return nil, err
	}
	return p, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, txnID string, from, to Status, approvedAt *time.Time) (*Payment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE payments
		SET status = $3,
		    approved_at = COALESCE($4, approved_at),
		    updated_at = now()
		WHERE txn_id = $1
		  AND status = $2
		RETURNING txn_id, appointment_id, amount_cents, method, status, approved_at, created_at, updated_at
	`, txnID, from, to, approvedAt)

	return scanPayment(row)
}
