package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MinuteOfDay is a time of day in minutes since midnight. Slot windows and
// appointment times are half-open intervals [start, end) over this type.
type MinuteOfDay int16

const minutesPerDay = 24 * 60

// ParseMinuteOfDay parses a "HH:MM" clock string.
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

func (m MinuteOfDay) Valid() bool {
	return m >= 0 && m < minutesPerDay
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Add returns the minute d later, capped at end of day.
func (m MinuteOfDay) Add(d time.Duration) MinuteOfDay {
	out := int(m) + int(d/time.Minute)
	if out > minutesPerDay {
		out = minutesPerDay
	}
	return MinuteOfDay(out)
}

// Slot is a recurring weekly availability window owned by one professional.
// Slots are deactivated rather than deleted so appointments booked against a
// window keep a valid historical reference; a time change is modeled as
// deactivate-and-recreate.
type Slot struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Weekday        time.Weekday
	Start          MinuteOfDay
	End            MinuteOfDay
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Covers reports whether the candidate window lies inside this slot.
func (s Slot) Covers(start, end MinuteOfDay) bool {
	return s.Start <= start && end <= s.End
}

// Overlaps is the single conflict primitive for half-open windows: [a,b) and
// [c,d) intersect iff a < d and c < b. A window ending exactly when another
// starts does not conflict.
func Overlaps(existingStart, existingEnd, candidateStart, candidateEnd MinuteOfDay) bool {
	return candidateStart < existingEnd && candidateEnd > existingStart
}
