package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"solarbook/backend/internal/domain"
	"solarbook/backend/internal/store"
)

// Defaults applied when a window is created implicitly by a flag-only
// upsert. The dealer can overwrite them with a full window spec.
const (
	DefaultWindowStart         = "09:00"
	DefaultWindowEnd           = "17:00"
	DefaultSlotDurationMinutes = 60
	DefaultMaxBookings         = 1
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (r *ScheduleRepo) GetWindow(ctx context.Context, dealerID string, date time.Time) (domain.AvailabilityWindow, error) {
	return getWindow(ctx, r.db, dealerID, date)
}

func (r *ScheduleRepo) ListWindows(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&rows).
		Where("dealer_id = ?", dealerID).
		Where("date >= ?", domain.DateOnly(from)).
		Where("date <= ?", domain.DateOnly(to)).
		OrderExpr("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) CreateWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	m := window
	m.Date = domain.DateOnly(window.Date)

	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.AvailabilityWindow{}, store.ErrConflict
		}
		return domain.AvailabilityWindow{}, err
	}
	return m, nil
}

func (r *ScheduleRepo) SetAvailabilityFlag(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error) {
	status := domain.AvailabilityStatusUnavailable
	if available {
		status = domain.AvailabilityStatusAvailable
	}

	m := domain.AvailabilityWindow{
		DealerID:            dealerID,
		Date:                domain.DateOnly(date),
		Status:              status,
		StartTime:           DefaultWindowStart,
		EndTime:             DefaultWindowEnd,
		SlotDurationMinutes: DefaultSlotDurationMinutes,
		MaxBookings:         DefaultMaxBookings,
	}

	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (dealer_id, date) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	return m, nil
}

func (r *ScheduleRepo) ListActiveBookings(ctx context.Context, dealerID string, date time.Time) ([]domain.Booking, error) {
	return listActiveBookings(ctx, r.db, dealerID, date)
}

func (r *ScheduleRepo) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.db, bookingID)
}

func (r *ScheduleRepo) GetActiveService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	var svc domain.Service
	err := r.db.NewSelect().
		Model(&svc).
		Where("id = ?", serviceID).
		Where("is_active = TRUE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Service{}, store.ErrNotFound
		}
		return domain.Service{}, err
	}
	return svc, nil
}

// InDealerDayTransaction serializes writers for a (dealer, date) pair with a
// transaction-scoped advisory lock, so the overlap re-check and insert run
// as one atomic unit.
func (r *ScheduleRepo) InDealerDayTransaction(ctx context.Context, dealerID string, date time.Time, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDealerDay(ctx, tx, dealerID, date); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockDealerDay(ctx context.Context, tx bun.Tx, dealerID string, date time.Time) error {
	key := dealerID + ":" + domain.DateOnly(date).Format("2006-01-02")
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (t scheduleTx) GetWindow(ctx context.Context, dealerID string, date time.Time) (domain.AvailabilityWindow, error) {
	return getWindow(ctx, t.tx, dealerID, date)
}

func (t scheduleTx) ListActiveBookings(ctx context.Context, dealerID string, date time.Time) ([]domain.Booking, error) {
	return listActiveBookings(ctx, t.tx, dealerID, date)
}

func (t scheduleTx) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	m.Date = domain.DateOnly(booking.Date)

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Booking{}, store.ErrConflict
		}
		return domain.Booking{}, err
	}
	return m, nil
}

func (t scheduleTx) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, t.tx, bookingID)
}

func (t scheduleTx) UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	res, err := t.tx.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func getWindow(ctx context.Context, db bun.IDB, dealerID string, date time.Time) (domain.AvailabilityWindow, error) {
	var w domain.AvailabilityWindow
	err := db.NewSelect().
		Model(&w).
		Where("dealer_id = ?", dealerID).
		Where("date = ?", domain.DateOnly(date)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AvailabilityWindow{}, store.ErrNotFound
		}
		return domain.AvailabilityWindow{}, err
	}
	return w, nil
}

func listActiveBookings(ctx context.Context, db bun.IDB, dealerID string, date time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("dealer_id = ?", dealerID).
		Where("date = ?", domain.DateOnly(date)).
		Where("status IN (?)", bun.In(domain.ActiveBookingStatuses)).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getBooking(ctx context.Context, db bun.IDB, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return b, nil
}
