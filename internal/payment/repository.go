package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentExists       = errors.New("appointment already has a payment")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains the ledger DB interactions used by the service.
type Repository interface {
	GetByTxnID(ctx context.Context, txnID string) (*Payment, error)

	// GetConsultationFeeCents resolves the fee of the professional who owns
	// the appointment, for the amount gate at open time.
	GetConsultationFeeCents(ctx context.Context, appointmentID uuid.UUID) (int64, error)

	// CreatePending inserts the payment. The unique constraint on
	// appointment_id enforces one payment per appointment and surfaces as
	// ErrPaymentExists.
	CreatePending(ctx context.Context, txnID string, appointmentID uuid.UUID, amountCents int64, method Method) (*Payment, error)

	// UpdateStatus is a compare-and-swap on the payment status. approvedAt
	// is written only when non-nil. ErrPaymentNotFound covers both missing
	// rows and CAS misses.
	UpdateStatus(ctx context.Context, txnID string, from, to Status, approvedAt *time.Time) (*Payment, error)
}
