package review

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrDuplicateReview = errors.New("appointment already has a review")
)

// Repository contains the review DB interactions used by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)

	// Create inserts a pending review. The unique constraint on
	// appointment_id surfaces as ErrDuplicateReview.
	Create(ctx context.Context, appointmentID, patientID uuid.UUID, rating int16, comment string) (*Review, error)

	// UpdateStatus moves the moderation state with no ordering constraint.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Review, error)

	ListByProfessional(ctx context.Context, professionalID uuid.UUID, onlyApproved bool) ([]Review, error)
	RatingSummary(ctx context.Context, professionalID uuid.UUID) (*RatingSummary, error)
}
