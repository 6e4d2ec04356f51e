package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound         = errors.New("slot not found")
	ErrProfessionalNotFound = errors.New("professional not found")
)

// Repository contains the availability-slot DB interactions used by the service.
type Repository interface {
	CreateSlot(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday, start, end MinuteOfDay) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// DeactivateSlot clears the active flag. Deactivating an already
	// inactive slot is a no-op.
	DeactivateSlot(ctx context.Context, id uuid.UUID) error

	ListSlots(ctx context.Context, professionalID uuid.UUID) ([]Slot, error)
	ListActiveSlots(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday) ([]Slot, error)
}
