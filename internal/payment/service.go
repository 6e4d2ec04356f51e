package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/events"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/observability/metrics"
)

var (
	ErrInvalidMethod     = errors.New("unknown payment method")
	ErrAmountMismatch    = errors.New("amount does not match the professional's consultation fee")
	ErrInvalidTransition = errors.New("invalid payment status transition")

	// ErrLedgerInconsistent flags an approved payment whose appointment is
	// gone. That breaks the one-payment-per-appointment invariant and must
	// abort loudly instead of being absorbed.
	ErrLedgerInconsistent = errors.New("payment ledger inconsistency")
)

// AmountMismatchError carries both amounts so the caller can show an
// actionable reason.
type AmountMismatchError struct {
	ExpectedCents int64
	GotCents      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount %d does not match consultation fee %d", e.GotCents, e.ExpectedCents)
}

func (e *AmountMismatchError) Is(target error) bool {
	return target == ErrAmountMismatch
}

// TransitionError reports a rejected ledger move with both states.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid payment transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Confirmer is the scheduler hook invoked when a payment is approved.
type Confirmer interface {
	Confirm(ctx context.Context, appointmentID uuid.UUID) (*appointment.Appointment, error)
}

// Service is the single source of truth for payment status per appointment.
// It bridges external gateway events to the scheduler: approval is the only
// path to a confirmed appointment.
type Service struct {
	repo      Repository
	confirmer Confirmer
	recorder  events.Recorder
	metrics   *metrics.BookingMetrics
}

func NewService(repo Repository, confirmer Confirmer, recorder events.Recorder, m *metrics.BookingMetrics) *Service {
	return &Service{
		repo:      repo,
		confirmer: confirmer,
		recorder:  recorder,
		metrics:   m,
	}
}

// Open creates the pending payment for an appointment. The amount must equal
// the owning professional's stored consultation fee.
func (s *Service) Open(ctx context.Context, appointmentID uuid.UUID, amountCents int64, method Method) (*Payment, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	fee, err := s.repo.GetConsultationFeeCents(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load consultation fee: %w", err)
	}
	if amountCents != fee {
		return nil, &AmountMismatchError{ExpectedCents: fee, GotCents: amountCents}
	}

	p, err := s.repo.CreatePending(ctx, newTxnID(), appointmentID, amountCents, method)
	if err != nil {
		if errors.Is(err, ErrPaymentExists) || errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.metrics.ObservePayment("opened")
	return p, nil
}

// MarkApproved records a gateway approval and confirms the linked
// appointment. Gateways redeliver webhooks, so a duplicate approval for an
// already-approved payment is a silent no-op. A confirm that loses the race
// against a client cancel is surfaced to the caller for the refund flow; the
// payment itself stays approved.
func (s *Service) MarkApproved(ctx context.Context, txnID string, approvedAt time.Time) (*Payment, error) {
	p, err := s.repo.UpdateStatus(ctx, txnID, StatusPending, StatusApproved, &approvedAt)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, fmt.Errorf("approve payment: %w", err)
		}

		current, getErr := s.repo.GetByTxnID(ctx, txnID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusApproved {
			s.metrics.ObservePayment("approval_replay")
			return current, nil
		}
		return nil, &TransitionError{From: current.Status, To: StatusApproved}
	}

	s.metrics.ObservePayment("approved")
	s.emit(ctx, events.EventPaymentApproved, map[string]any{
		"transaction_id": p.TxnID,
	})

	if _, err := s.confirmer.Confirm(ctx, p.AppointmentID); err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: approved payment %s has no appointment", ErrLedgerInconsistent, p.TxnID)
		}
		// Payment stays approved; the appointment refused the transition
		// (e.g. cancelled first). The gateway adapter reconciles via refund.
		return p, fmt.Errorf("confirm appointment %s: %w", p.AppointmentID, err)
	}

	return p, nil
}

// MarkFailed records a gateway failure. The appointment stays pending and can
// be retried or cancelled. Redelivered failure events are absorbed.
func (s *Service) MarkFailed(ctx context.Context, txnID string) (*Payment, error) {
	p, err := s.repo.UpdateStatus(ctx, txnID, StatusPending, StatusFailed, nil)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, fmt.Errorf("fail payment: %w", err)
		}

		current, getErr := s.repo.GetByTxnID(ctx, txnID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusFailed {
			return current, nil
		}
		return nil, &TransitionError{From: current.Status, To: StatusFailed}
	}

	s.metrics.ObservePayment("failed")
	return p, nil
}

// Refund moves an approved payment to refunded, typically after a cancel
// lost the race against confirmation.
func (s *Service) Refund(ctx context.Context, txnID string) (*Payment, error) {
	p, err := s.repo.UpdateStatus(ctx, txnID, StatusApproved, StatusRefunded, nil)
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, fmt.Errorf("refund payment: %w", err)
		}

		current, getErr := s.repo.GetByTxnID(ctx, txnID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusRefunded {
			return current, nil
		}
		return nil, &TransitionError{From: current.Status, To: StatusRefunded}
	}

	s.metrics.ObservePayment("refunded")
	return p, nil
}

func (s *Service) Get(ctx context.Context, txnID string) (*Payment, error) {
	return s.repo.GetByTxnID(ctx, txnID)
}

func (s *Service) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, eventType, payload); err != nil {
		log.Printf("record event %s: %v", eventType, err)
	}
}
