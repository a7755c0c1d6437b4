package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusScheduled   BookingStatus = "SCHEDULED"
	BookingStatusInProgress  BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted   BookingStatus = "COMPLETED"
	BookingStatusCancelled   BookingStatus = "CANCELLED"
	BookingStatusRescheduled BookingStatus = "RESCHEDULED"
)

// bookingTransitions is the allowed status edge set. COMPLETED is terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusScheduled:   {BookingStatusInProgress, BookingStatusCancelled, BookingStatusRescheduled},
	BookingStatusInProgress:  {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:   {},
	BookingStatusCancelled:   {BookingStatusRescheduled},
	BookingStatusRescheduled: {BookingStatusScheduled, BookingStatusCancelled},
}

// IsValid reports whether s is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// ActiveBookingStatuses are the statuses that occupy a time slot for
// overlap purposes.
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusScheduled,
	BookingStatusInProgress,
	BookingStatusRescheduled,
}

// IsActive reports whether a booking in this status still occupies its slot.
func (s BookingStatus) IsActive() bool {
	for _, a := range ActiveBookingStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Booking is a confirmed or provisional service appointment. Bookings are
// never deleted; the lifecycle is tracked through Status.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID             uuid.UUID     `bun:"id,pk,type:uuid"`
	DealerID       string        `bun:"dealer_id,notnull"`
	CustomerID     string        `bun:"customer_id,notnull"`
	ServiceID      uuid.UUID     `bun:"service_id,notnull,type:uuid"`
	QuoteRef       string        `bun:"quote_ref"`
	Date           time.Time     `bun:"date,notnull,type:date"`
	StartTime      string        `bun:"start_time,notnull"`
	EndTime        string        `bun:"end_time,notnull"`
	EstimatedHours int           `bun:"estimated_hours,notnull"`
	Status         BookingStatus `bun:"status,notnull"`
	TotalAmount    float64       `bun:"total_amount"`
	ContactName    string        `bun:"contact_name"`
	ContactPhone   string        `bun:"contact_phone"`
	Address        string        `bun:"address"`
	CancelReason   string        `bun:"cancel_reason"`
	CompletedAt    *time.Time    `bun:"completed_at"`
	CancelledAt    *time.Time    `bun:"cancelled_at"`
	CreatedAt      time.Time     `bun:"created_at,notnull"`
	UpdatedAt      time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// Span returns the booking's [start, end) interval in minutes since
// midnight. It fails if either stored time is malformed.
func (b *Booking) Span() (start, end int, err error) {
	start, err = ToMinutes(b.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ToMinutes(b.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
