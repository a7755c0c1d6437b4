package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"solarbook/backend/internal/domain"
	"solarbook/backend/internal/store"
)

// MaxCalendarRangeDays caps availability listings to keep calendar queries
// bounded.
const MaxCalendarRangeDays = 90

// RejectionReason explains why a booking request was not admitted. Each
// reason is user-displayable and never collapsed into a generic failure.
type RejectionReason string

const (
	ReasonDealerUnavailable RejectionReason = "DEALER_UNAVAILABLE"
	ReasonOutsideWindow     RejectionReason = "OUTSIDE_WINDOW"
	ReasonSlotTaken         RejectionReason = "SLOT_TAKEN"
)

// RejectionError is returned when an admission check fails a business rule.
type RejectionError struct {
	Reason RejectionReason
}

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonDealerUnavailable:
		return "dealer is not available on that date"
	case ReasonOutsideWindow:
		return "requested time falls outside the dealer's availability window"
	case ReasonSlotTaken:
		return "requested time overlaps an existing booking"
	}
	return string(e.Reason)
}

// TransitionError reports a disallowed status transition.
type TransitionError struct {
	From domain.BookingStatus
	To   domain.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}

// ErrUnauthorized is returned when the acting identity does not own the
// resource it is mutating.
var ErrUnauthorized = errors.New("unauthorized")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Decision is the outcome of an admission check.
type Decision struct {
	Admissible bool
	Reason     RejectionReason

	// Candidate span in minutes since midnight, valid when the input parsed.
	Start int
	End   int
}

type Service struct {
	repo store.ScheduleRepository
}

func NewService(repo store.ScheduleRepository) *Service {
	return &Service{repo: repo}
}

// scheduleReader is the read surface needed by the admission check. Both
// the repository and the in-transaction handle satisfy it, so the same
// check runs outside and inside the admission transaction.
type scheduleReader interface {
	GetWindow(ctx context.Context, dealerID string, date time.Time) (domain.AvailabilityWindow, error)
	ListActiveBookings(ctx context.Context, dealerID string, date time.Time) ([]domain.Booking, error)
}

// candidateSpan computes the [start, end) minute interval for a requested
// start time and duration. The end time wraps modulo 24 hours; a wrapped
// end means the booking would cross midnight, which is not supported.
func candidateSpan(startTime string, durationHours int) (start, end int, err error) {
	start, err = domain.ToMinutes(startTime)
	if err != nil {
		return 0, 0, validationError(err.Error())
	}
	if durationHours <= 0 {
		return 0, 0, validationError("estimated_hours must be a positive integer")
	}
	endTime, err := domain.AddHours(startTime, durationHours)
	if err != nil {
		return 0, 0, validationError(err.Error())
	}
	end, err = domain.ToMinutes(endTime)
	if err != nil {
		return 0, 0, validationError(err.Error())
	}
	if end <= start {
		return 0, 0, validationError("booking may not cross midnight")
	}
	return start, end, nil
}

// CheckAdmissible decides whether a candidate booking can be legally placed.
// It has no side effects and is safe to call repeatedly.
func (s *Service) CheckAdmissible(ctx context.Context, dealerID string, date time.Time, startTime string, durationHours int) (Decision, error) {
	if strings.TrimSpace(dealerID) == "" {
		return Decision{}, validationError("dealer_id is required")
	}
	if date.IsZero() {
		return Decision{}, validationError("date is required")
	}
	start, end, err := candidateSpan(startTime, durationHours)
	if err != nil {
		return Decision{}, err
	}
	return checkAdmissible(ctx, s.repo, dealerID, domain.DateOnly(date), start, end)
}

func checkAdmissible(ctx context.Context, r scheduleReader, dealerID string, date time.Time, start, end int) (Decision, error) {
	d := Decision{Start: start, End: end}

	window, err := r.GetWindow(ctx, dealerID, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.Reason = ReasonDealerUnavailable
			return d, nil
		}
		return Decision{}, err
	}
	if window.Status != domain.AvailabilityStatusAvailable {
		d.Reason = ReasonDealerUnavailable
		return d, nil
	}

	contained, err := window.Contains(start, end)
	if err != nil {
		return Decision{}, err
	}
	if !contained {
		d.Reason = ReasonOutsideWindow
		return d, nil
	}

	existing, err := r.ListActiveBookings(ctx, dealerID, date)
	if err != nil {
		return Decision{}, err
	}
	for _, b := range existing {
		bStart, bEnd, err := b.Span()
		if err != nil {
			return Decision{}, err
		}
		if domain.Overlaps(start, end, bStart, bEnd) {
			d.Reason = ReasonSlotTaken
			return d, nil
		}
	}

	d.Admissible = true
	return d, nil
}

type CreateBookingInput struct {
	DealerID       string
	CustomerID     string
	ServiceID      uuid.UUID
	QuoteRef       string
	Date           time.Time
	StartTime      string
	EstimatedHours int
	ContactName    string
	ContactPhone   string
	Address        string
}

// CreateBooking validates the request, resolves the catalog entry, checks
// admissibility, and persists the booking. The admission check is re-run
// inside a dealer-day transaction so no concurrent request can interleave a
// conflicting insert between check and write.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	if strings.TrimSpace(in.DealerID) == "" {
		return domain.Booking{}, validationError("dealer_id is required")
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		return domain.Booking{}, validationError("customer_id is required")
	}
	if in.ServiceID == uuid.Nil {
		return domain.Booking{}, validationError("service_id is required")
	}
	if in.Date.IsZero() {
		return domain.Booking{}, validationError("date is required")
	}
	start, end, err := candidateSpan(in.StartTime, in.EstimatedHours)
	if err != nil {
		return domain.Booking{}, err
	}

	svc, err := s.repo.GetActiveService(ctx, in.ServiceID)
	if err != nil {
		return domain.Booking{}, err
	}
	if svc.DealerID != in.DealerID {
		return domain.Booking{}, store.ErrNotFound
	}

	date := domain.DateOnly(in.Date)

	decision, err := checkAdmissible(ctx, s.repo, in.DealerID, date, start, end)
	if err != nil {
		return domain.Booking{}, err
	}
	if !decision.Admissible {
		return domain.Booking{}, &RejectionError{Reason: decision.Reason}
	}

	booking := domain.Booking{
		DealerID:       in.DealerID,
		CustomerID:     in.CustomerID,
		ServiceID:      in.ServiceID,
		QuoteRef:       strings.TrimSpace(in.QuoteRef),
		Date:           date,
		StartTime:      domain.FormatMinutes(start),
		EndTime:        domain.FormatMinutes(end),
		EstimatedHours: in.EstimatedHours,
		Status:         domain.BookingStatusScheduled,
		TotalAmount:    svc.Price,
		ContactName:    strings.TrimSpace(in.ContactName),
		ContactPhone:   strings.TrimSpace(in.ContactPhone),
		Address:        strings.TrimSpace(in.Address),
	}

	var out domain.Booking
	err = s.repo.InDealerDayTransaction(ctx, in.DealerID, date, func(ctx context.Context, tx store.ScheduleTx) error {
		decision, err := checkAdmissible(ctx, tx, in.DealerID, date, start, end)
		if err != nil {
			return err
		}
		if !decision.Admissible {
			return &RejectionError{Reason: decision.Reason}
		}
		b, err := tx.CreateBooking(ctx, booking)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

// TransitionOptions carries side-effect inputs for a status transition.
type TransitionOptions struct {
	CancellationReason string
}

// Transition applies a status change to an existing booking. Only the
// owning dealer may transition their own bookings; the caller resolves the
// acting dealer from the authenticated identity.
func (s *Service) Transition(ctx context.Context, actorDealerID string, bookingID uuid.UUID, newStatus domain.BookingStatus, opts TransitionOptions) (domain.Booking, error) {
	if strings.TrimSpace(actorDealerID) == "" {
		return domain.Booking{}, validationError("dealer_id is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if !newStatus.IsValid() {
		return domain.Booking{}, validationError(fmt.Sprintf("unknown status %q", newStatus))
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.DealerID != actorDealerID {
		return domain.Booking{}, ErrUnauthorized
	}

	var out domain.Booking
	err = s.repo.InDealerDayTransaction(ctx, booking.DealerID, booking.Date, func(ctx context.Context, tx store.ScheduleTx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(newStatus) {
			return &TransitionError{From: b.Status, To: newStatus}
		}

		now := time.Now().UTC()
		b.Status = newStatus
		switch newStatus {
		case domain.BookingStatusCompleted:
			b.CompletedAt = &now
		case domain.BookingStatusCancelled:
			b.CancelledAt = &now
			b.CancelReason = strings.TrimSpace(opts.CancellationReason)
		}

		updated, err := tx.UpdateBooking(ctx, b)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

// GetAvailability lists a dealer's explicit windows in [from, to], ordered
// by date ascending. Dates without a window are not bookable and are not
// listed.
func (s *Service) GetAvailability(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error) {
	if strings.TrimSpace(dealerID) == "" {
		return nil, validationError("dealer_id is required")
	}
	from = domain.DateOnly(from)
	to = domain.DateOnly(to)
	if to.Before(from) {
		return nil, validationError("to must not be before from")
	}
	if int(to.Sub(from).Hours()/24) > MaxCalendarRangeDays {
		return nil, validationError(fmt.Sprintf("date range exceeds maximum of %d days", MaxCalendarRangeDays))
	}
	return s.repo.ListWindows(ctx, dealerID, from, to)
}

type CreateWindowInput struct {
	DealerID            string
	Date                time.Time
	Status              domain.AvailabilityStatus
	StartTime           string
	EndTime             string
	SlotDurationMinutes int
	MaxBookings         int
}

// CreateWindow creates a full window spec for a (dealer, date). A second
// window for the same pair fails with store.ErrConflict.
func (s *Service) CreateWindow(ctx context.Context, in CreateWindowInput) (domain.AvailabilityWindow, error) {
	if strings.TrimSpace(in.DealerID) == "" {
		return domain.AvailabilityWindow{}, validationError("dealer_id is required")
	}
	if in.Date.IsZero() {
		return domain.AvailabilityWindow{}, validationError("date is required")
	}
	status := in.Status
	if status == "" {
		status = domain.AvailabilityStatusAvailable
	}
	if !status.IsValid() {
		return domain.AvailabilityWindow{}, validationError(fmt.Sprintf("unknown status %q", in.Status))
	}
	start, err := domain.ToMinutes(in.StartTime)
	if err != nil {
		return domain.AvailabilityWindow{}, validationError(err.Error())
	}
	end, err := domain.ToMinutes(in.EndTime)
	if err != nil {
		return domain.AvailabilityWindow{}, validationError(err.Error())
	}
	if end <= start {
		return domain.AvailabilityWindow{}, validationError("end_time must be after start_time")
	}
	if in.SlotDurationMinutes <= 0 {
		return domain.AvailabilityWindow{}, validationError("slot_duration_minutes must be positive")
	}
	if in.MaxBookings <= 0 {
		return domain.AvailabilityWindow{}, validationError("max_bookings must be positive")
	}

	return s.repo.CreateWindow(ctx, domain.AvailabilityWindow{
		DealerID:            in.DealerID,
		Date:                domain.DateOnly(in.Date),
		Status:              status,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		SlotDurationMinutes: in.SlotDurationMinutes,
		MaxBookings:         in.MaxBookings,
	})
}

// SetAvailability upserts the availability flag for a single date.
func (s *Service) SetAvailability(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error) {
	if strings.TrimSpace(dealerID) == "" {
		return domain.AvailabilityWindow{}, validationError("dealer_id is required")
	}
	if date.IsZero() {
		return domain.AvailabilityWindow{}, validationError("date is required")
	}
	return s.repo.SetAvailabilityFlag(ctx, dealerID, domain.DateOnly(date), available)
}

// DateFlag pairs a date with its desired availability.
type DateFlag struct {
	Date      time.Time
	Available bool
}

// BulkSetAvailability applies SetAvailability per pair. Each upsert is
// individually atomic; the batch is not. On failure the windows applied so
// far are returned alongside an error naming the failing date.
func (s *Service) BulkSetAvailability(ctx context.Context, dealerID string, flags []DateFlag) ([]domain.AvailabilityWindow, error) {
	if strings.TrimSpace(dealerID) == "" {
		return nil, validationError("dealer_id is required")
	}
	if len(flags) == 0 {
		return nil, validationError("at least one date is required")
	}

	applied := make([]domain.AvailabilityWindow, 0, len(flags))
	for _, f := range flags {
		if f.Date.IsZero() {
			return applied, validationError("date is required")
		}
		w, err := s.repo.SetAvailabilityFlag(ctx, dealerID, domain.DateOnly(f.Date), f.Available)
		if err != nil {
			return applied, fmt.Errorf("set availability for %s: %w", domain.DateOnly(f.Date).Format("2006-01-02"), err)
		}
		applied = append(applied, w)
	}
	return applied, nil
}
