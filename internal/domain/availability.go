package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AvailabilityStatus is the declared state of a dealer's day window.
type AvailabilityStatus string

const (
	AvailabilityStatusAvailable   AvailabilityStatus = "AVAILABLE"
	AvailabilityStatusUnavailable AvailabilityStatus = "UNAVAILABLE"
	AvailabilityStatusBlocked     AvailabilityStatus = "BLOCKED"
)

// IsValid reports whether s is a recognized availability status.
func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case AvailabilityStatusAvailable, AvailabilityStatusUnavailable, AvailabilityStatusBlocked:
		return true
	}
	return false
}

// AvailabilityWindow is a dealer's declared availability for one calendar
// date. At most one window exists per (dealer, date); windows are only ever
// overwritten or status-flipped, never deleted.
type AvailabilityWindow struct {
	bun.BaseModel `bun:"table:availability_windows"`

	ID                  uuid.UUID          `bun:"id,pk,type:uuid"`
	DealerID            string             `bun:"dealer_id,notnull"`
	Date                time.Time          `bun:"date,notnull,type:date"`
	Status              AvailabilityStatus `bun:"status,notnull"`
	StartTime           string             `bun:"start_time,notnull"`
	EndTime             string             `bun:"end_time,notnull"`
	SlotDurationMinutes int                `bun:"slot_duration_minutes,notnull"`
	MaxBookings         int                `bun:"max_bookings,notnull"`
	CreatedAt           time.Time          `bun:"created_at,notnull"`
	UpdatedAt           time.Time          `bun:"updated_at,notnull"`
}

func (w *AvailabilityWindow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			w.ID = id
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if w.UpdatedAt.IsZero() {
			w.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		w.UpdatedAt = now
	}
	return nil
}

// Span returns the window's [start, end) interval in minutes since midnight.
func (w *AvailabilityWindow) Span() (start, end int, err error) {
	start, err = ToMinutes(w.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ToMinutes(w.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Contains reports whether [start, end) fits entirely inside the window.
func (w *AvailabilityWindow) Contains(start, end int) (bool, error) {
	ws, we, err := w.Span()
	if err != nil {
		return false, err
	}
	return ws <= start && we >= end, nil
}

// DateOnly truncates t to UTC midnight, the canonical form for the
// day-granularity date columns.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
