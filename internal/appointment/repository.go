package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrMeetingRefTaken is the meeting_ref uniqueness violation surfaced
	// so the service can regenerate and retry.
	ErrMeetingRefTaken = errors.New("meeting reference already taken")
)

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListBookedOnDate returns the professional's non-cancelled
	// appointments on a calendar date, for the conflict check.
	ListBookedOnDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error)

	CreatePendingAppointment(ctx context.Context, professionalID, patientID uuid.UUID, date time.Time, start, end schedule.MinuteOfDay, meetingRef string) (*Appointment, error)

	// UpdateStatus is a compare-and-swap: the row moves to `to` only if its
	// current status is one of `from`. ErrAppointmentNotFound is returned
	// when no row matched, including CAS misses.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error)
}
