package review

import (
	"time"

	"github.com/google/uuid"
)

type Status string

// Moderation states move freely between each other: a flagged review can be
// approved after human inspection and an approved one re-flagged. This is
// deliberately looser than the appointment machine.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusFlagged:
		return true
	}
	return false
}

const (
	MinRating = 1
	MaxRating = 5
)

// Review is post-completion feedback from the patient, at most one per
// appointment.
type Review struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	Rating        int16
	Comment       string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RatingSummary aggregates a professional's approved reviews.
type RatingSummary struct {
	ProfessionalID uuid.UUID
	Average        float64
	Count          int64
}
