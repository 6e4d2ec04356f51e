package review

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/appointment"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/events"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/observability/metrics"
)

var (
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	ErrAppointmentNotCompleted = errors.New("appointment is not completed yet")
	ErrNotAppointmentPatient   = errors.New("review author is not the appointment's patient")
)

// AppointmentSource lets the registry check the precondition: reviews may
// only be authored against a completed appointment.
type AppointmentSource interface {
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Service struct {
	repo         Repository
	appointments AppointmentSource
	recorder     events.Recorder
	metrics      *metrics.BookingMetrics
}

func NewService(repo Repository, appointments AppointmentSource, recorder events.Recorder, m *metrics.BookingMetrics) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		recorder:     recorder,
		metrics:      m,
	}
}

// Submit creates a pending review for a completed appointment.
func (s *Service) Submit(ctx context.Context, appointmentID, patientID uuid.UUID, rating int16, comment string) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		s.metrics.ObserveReview("invalid_rating")
		return nil, ErrInvalidRating
	}

	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != appointment.StatusCompleted {
		s.metrics.ObserveReview("not_completed")
		return nil, ErrAppointmentNotCompleted
	}
	if appt.PatientID != patientID {
		return nil, ErrNotAppointmentPatient
	}

	rev, err := s.repo.Create(ctx, appointmentID, patientID, rating, comment)
	if err != nil {
		if errors.Is(err, ErrDuplicateReview) {
			s.metrics.ObserveReview("duplicate")
			return nil, err
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.metrics.ObserveReview("submitted")
	s.emit(ctx, events.EventReviewReceived, map[string]any{
		"appointment_id": appointmentID.String(),
	})
	return rev, nil
}

// Approve marks the review publishable. Moderation moves freely, so no
// current-state check is made.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Review, error) {
	return s.moderate(ctx, id, StatusApproved)
}

// Flag marks the review for human inspection.
func (s *Service) Flag(ctx context.Context, id uuid.UUID) (*Review, error) {
	return s.moderate(ctx, id, StatusFlagged)
}

func (s *Service) moderate(ctx context.Context, id uuid.UUID, to Status) (*Review, error) {
	rev, err := s.repo.UpdateStatus(ctx, id, to)
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("moderate review: %w", err)
	}
	return rev, nil
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Review, error) {
	reviews, err := s.repo.ListByProfessional(ctx, professionalID, true)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// RatingSummary averages the professional's approved reviews.
func (s *Service) RatingSummary(ctx context.Context, professionalID uuid.UUID) (*RatingSummary, error) {
	summary, err := s.repo.RatingSummary(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("rating summary: %w", err)
	}
	return summary, nil
}

func (s *Service) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, eventType, payload); err != nil {
		log.Printf("record event %s: %v", eventType, err)
	}
}
