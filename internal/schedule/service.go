package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidWindow  = errors.New("slot start must be before slot end")
	ErrInvalidWeekday = errors.New("weekday must be between Sunday and Saturday")
)

// Service is the availability calendar: the source of truth for whether a
// professional can be booked at a given weekday and time window.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AddSlot publishes a new recurring weekly window for the professional.
func (s *Service) AddSlot(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday, start, end MinuteOfDay) (*Slot, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil, ErrInvalidWeekday
	}
	if !start.Valid() || !end.Valid() || start >= end {
		return nil, ErrInvalidWindow
	}

	slot, err := s.repo.CreateSlot(ctx, professionalID, weekday, start, end)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

// DeactivateSlot takes a window out of rotation. Appointments already booked
// against it are untouched: coverage is a point-in-time check at booking.
func (s *Service) DeactivateSlot(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivateSlot(ctx, id); err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("deactivate slot: %w", err)
	}
	return nil
}

func (s *Service) ListSlots(ctx context.Context, professionalID uuid.UUID) ([]Slot, error) {
	slots, err := s.repo.ListSlots(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// IsCovered reports whether some active slot of the professional on that
// weekday fully contains [start, end).
func (s *Service) IsCovered(ctx context.Context, professionalID uuid.UUID, weekday time.Weekday, start, end MinuteOfDay) (bool, error) {
	slots, err := s.repo.ListActiveSlots(ctx, professionalID, weekday)
	if err != nil {
		return false, fmt.Errorf("list active slots: %w", err)
	}

	for _, slot := range slots {
		if slot.Covers(start, end) {
			return true, nil
		}
	}
	return false, nil
}
