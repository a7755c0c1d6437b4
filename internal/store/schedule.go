package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"solarbook/backend/internal/domain"
)

// ScheduleRepository is the persistence surface the scheduling service
// depends on. All dates are day-granularity (UTC midnight).
type ScheduleRepository interface {
	GetWindow(ctx context.Context, dealerID string, date time.Time) (domain.AvailabilityWindow, error)
	ListWindows(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error)
	CreateWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error)
	SetAvailabilityFlag(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error)

	ListActiveBookings(ctx context.Context, dealerID string, date time.Time) ([]domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)

	GetActiveService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)

	// InDealerDayTransaction runs fn inside a transaction that holds an
	// exclusive lock for the (dealer, date) pair, serializing all writers
	// racing for the same day's slots.
	InDealerDayTransaction(ctx context.Context, dealerID string, date time.Time, fn func(ctx context.Context, tx ScheduleTx) error) error
}

// ScheduleTx is the write surface available inside a dealer-day transaction.
type ScheduleTx interface {
	GetWindow(ctx context.Context, dealerID string, date time.Time) (domain.AvailabilityWindow, error)
	ListActiveBookings(ctx context.Context, dealerID string, date time.Time) ([]domain.Booking, error)
	CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
}
