package appointment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/events"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/observability/metrics"
	redisclient "github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/redis"
	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
)

var (
	ErrOutsideAvailability = errors.New("requested time is outside the professional's availability")
	ErrSlotConflict        = errors.New("requested time conflicts with an existing booking")
	ErrCalendarBusy        = errors.New("professional's calendar is busy, please retry")
	ErrInvalidDuration     = errors.New("duration must be positive")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// TransitionError reports a rejected state change with both states, so the
// caller can decide whether to reconcile (e.g. refund a cancelled booking).
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConflictError carries the window of the booking that blocked the request.
type ConflictError struct {
	Start schedule.MinuteOfDay
	End   schedule.MinuteOfDay
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicts with existing booking %s-%s", e.Start, e.End)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

// Calendar is the availability check the scheduler consults at booking time.
type Calendar interface {
	IsCovered(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday, start, end schedule.MinuteOfDay) (bool, error)
}

// Service is the only writer of appointment state. It enforces the lifecycle
// machine and runs the availability contract atomically per professional.
type Service struct {
	repo            Repository
	calendar        Calendar
	locker          redisclient.Locker
	recorder        events.Recorder
	metrics         *metrics.BookingMetrics
	defaultDuration time.Duration
}

func NewService(repo Repository, calendar Calendar, locker redisclient.Locker, recorder events.Recorder, m *metrics.BookingMetrics, defaultDuration time.Duration) *Service {
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Service{
		repo:            repo,
		calendar:        calendar,
		locker:          locker,
		recorder:        recorder,
		metrics:         m,
		defaultDuration: defaultDuration,
	}
}

const meetingRefAttempts = 3

// Book reserves [start, start+duration) on the professional's calendar for
// the patient. Coverage check, conflict check and insert run inside the
// per-professional lock so two concurrent bookers cannot both pass the
// conflict check for overlapping windows.
func (s *Service) Book(ctx context.Context, professionalID, patientID uuid.UUID, date time.Time, start schedule.MinuteOfDay, duration time.Duration) (*Appointment, error) {
	if duration == 0 {
		duration = s.defaultDuration
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}
	end := start.Add(duration)
	if !start.Valid() || end <= start {
		return nil, ErrInvalidDuration
	}

	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	lockStart := time.Now()
	err := s.locker.WithProfessionalLock(ctx, professionalID, func(lockCtx context.Context) error {
		s.metrics.ObserveLockWait(time.Since(lockStart).Seconds())

		covered, err := s.calendar.IsCovered(lockCtx, professionalID, date.Weekday(), start, end)
		if err != nil {
			return fmt.Errorf("coverage check: %w", err)
		}
		if !covered {
			return ErrOutsideAvailability
		}

		booked, err := s.repo.ListBookedOnDate(lockCtx, professionalID, date)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		for _, other := range booked {
			if schedule.Overlaps(other.Start, other.End, start, end) {
				return &ConflictError{Start: other.Start, End: other.End}
			}
		}

		created, err = s.createWithMeetingRef(lockCtx, professionalID, patientID, date, start, end)
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockBusy):
			s.metrics.ObserveBooking("busy")
			return nil, ErrCalendarBusy
		case errors.Is(err, ErrOutsideAvailability):
			s.metrics.ObserveBooking("outside_availability")
			return nil, err
		case errors.Is(err, ErrSlotConflict):
			s.metrics.ObserveBooking("conflict")
			return nil, err
		default:
			s.metrics.ObserveBooking("error")
			return nil, err
		}
	}

	s.metrics.ObserveBooking("booked")
	return created, nil
}

func (s *Service) createWithMeetingRef(ctx context.Context, professionalID, patientID uuid.UUID, date time.Time, start, end schedule.MinuteOfDay) (*Appointment, error) {
	for attempt := 0; attempt < meetingRefAttempts; attempt++ {
		ref, err := newMeetingRef()
		if err != nil {
			return nil, err
		}

		appt, err := s.repo.CreatePendingAppointment(ctx, professionalID, patientID, date, start, end, ref)
		if err != nil {
			if errors.Is(err, ErrMeetingRefTaken) {
				continue
			}
			return nil, fmt.Errorf("create pending appointment: %w", err)
		}
		return appt, nil
	}
	return nil, fmt.Errorf("create pending appointment: exhausted %d meeting ref attempts", meetingRefAttempts)
}

// Confirm moves a pending appointment to confirmed. Called by the payment
// ledger when the linked payment is approved, never directly by clients.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusConfirmed, StatusPending)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.EventAppointmentConfirmed, map[string]any{
		"appointment_id": appt.ID.String(),
	})
	return appt, nil
}

// Complete marks a confirmed appointment as held, unlocking review.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusCompleted, StatusConfirmed)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.EventAppointmentCompleted, map[string]any{
		"appointment_id": appt.ID.String(),
	})
	return appt, nil
}

// Cancel is callable by either party while the appointment is still pending
// or confirmed. The payment row is left alone for refund accounting.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, StatusCancelled, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.EventAppointmentCancelled, map[string]any{
		"appointment_id": appt.ID.String(),
	})
	return appt, nil
}

// transition performs a compare-and-swap status update. Competing transitions
// (payment-approval confirm vs. client cancel) race on the same row: the
// first to commit wins and the loser gets a TransitionError with the state
// that beat it.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error) {
	appt, err := s.repo.UpdateStatus(ctx, id, to, from...)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	// CAS miss: distinguish a missing row from an illegal transition.
	current, getErr := s.repo.GetAppointmentByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &TransitionError{From: current.Status, To: to}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, eventType, payload); err != nil {
		// Event delivery must never roll back a committed transition.
		log.Printf("record event %s: %v", eventType, err)
	}
}
