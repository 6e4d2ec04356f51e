package appointment

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mi-Alfierilets/codigo-tcc-telesaude/internal/schedule"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// allowedTransitions is the forward-only appointment machine. Completed and
// cancelled are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Specialty string

const (
	SpecialtyPsychologist     Specialty = "psychologist"
	SpecialtyNutritionist     Specialty = "nutritionist"
	SpecialtyPhysicalEducator Specialty = "physical_educator"
)

type Professional struct {
	ID                   uuid.UUID
	Name                 string
	Specialty            Specialty
	ConsultationFeeCents int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is a reservation of a patient against a professional's time.
// PaymentConfirmed is derived from the linked payment's status when the row
// is read; it is never stored, so it cannot drift from the ledger.
type Appointment struct {
	ID               uuid.UUID
	ProfessionalID   uuid.UUID
	PatientID        uuid.UUID
	Date             time.Time
	Start            schedule.MinuteOfDay
	End              schedule.MinuteOfDay
	Status           Status
	MeetingRef       string
	PaymentConfirmed bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MeetingURL renders the opaque meeting reference as a joinable link.
func (a *Appointment) MeetingURL() string {
	return "https://meet.google.com/" + a.MeetingRef
}

// meetingRefAlphabet deliberately drops 'l' to keep references readable.
const meetingRefAlphabet = "abcdefghijkmnopqrstuvwxyz"

const meetingRefLength = 10

// newMeetingRef returns a random fixed-length meeting reference. Collisions
// are vanishingly rare but handled by the caller retrying on the uniqueness
// violation rather than failing the booking.
func newMeetingRef() (string, error) {
	buf := make([]byte, meetingRefLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate meeting ref: %w", err)
	}
	for i, b := range buf {
		buf[i] = meetingRefAlphabet[int(b)%len(meetingRefAlphabet)]
	}
	return string(buf), nil
}
