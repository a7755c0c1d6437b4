package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"solarbook/backend/internal/domain"
	"solarbook/backend/internal/service/scheduling"
	"solarbook/backend/internal/store"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSvc struct {
	createBookingFn       func(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error)
	transitionFn          func(ctx context.Context, actorDealerID string, bookingID uuid.UUID, newStatus domain.BookingStatus, opts scheduling.TransitionOptions) (domain.Booking, error)
	getAvailabilityFn     func(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error)
	createWindowFn        func(ctx context.Context, in scheduling.CreateWindowInput) (domain.AvailabilityWindow, error)
	setAvailabilityFn     func(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error)
	bulkSetAvailabilityFn func(ctx context.Context, dealerID string, flags []scheduling.DateFlag) ([]domain.AvailabilityWindow, error)
}

func (f *fakeSvc) CreateBooking(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error) {
	if f.createBookingFn == nil {
		panic("CreateBooking not configured")
	}
	return f.createBookingFn(ctx, in)
}

func (f *fakeSvc) Transition(ctx context.Context, actorDealerID string, bookingID uuid.UUID, newStatus domain.BookingStatus, opts scheduling.TransitionOptions) (domain.Booking, error) {
	if f.transitionFn == nil {
		panic("Transition not configured")
	}
	return f.transitionFn(ctx, actorDealerID, bookingID, newStatus, opts)
}

func (f *fakeSvc) GetAvailability(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error) {
	if f.getAvailabilityFn == nil {
		panic("GetAvailability not configured")
	}
	return f.getAvailabilityFn(ctx, dealerID, from, to)
}

func (f *fakeSvc) CreateWindow(ctx context.Context, in scheduling.CreateWindowInput) (domain.AvailabilityWindow, error) {
	if f.createWindowFn == nil {
		panic("CreateWindow not configured")
	}
	return f.createWindowFn(ctx, in)
}

func (f *fakeSvc) SetAvailability(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error) {
	if f.setAvailabilityFn == nil {
		panic("SetAvailability not configured")
	}
	return f.setAvailabilityFn(ctx, dealerID, date, available)
}

func (f *fakeSvc) BulkSetAvailability(ctx context.Context, dealerID string, flags []scheduling.DateFlag) ([]domain.AvailabilityWindow, error) {
	if f.bulkSetAvailabilityFn == nil {
		panic("BulkSetAvailability not configured")
	}
	return f.bulkSetAvailabilityFn(ctx, dealerID, flags)
}

func newTestRouter(svc *fakeSvc) *gin.Engine {
	server := NewServer(svc, nil, nil)
	return server.Router(testSecret)
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (kind string) {
	t.Helper()
	var body struct {
		ErrorKind string `json:"error_kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.ErrorKind
}

func validBookingBody() map[string]any {
	return map[string]any{
		"dealer_id":       "d1",
		"service_id":      uuid.New().String(),
		"date":            "2024-06-10",
		"start_time":      "10:00",
		"estimated_hours": 2,
		"contact_name":    "Pat",
	}
}

func TestCreateBooking_RequiresAuth(t *testing.T) {
	router := newTestRouter(&fakeSvc{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/bookings", "", validBookingBody())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if kind := decodeError(t, rec); kind != "UNAUTHORIZED" {
		t.Fatalf("error_kind = %q, want UNAUTHORIZED", kind)
	}
}

func TestCreateBooking_DealerRoleForbidden(t *testing.T) {
	router := newTestRouter(&fakeSvc{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/bookings", signToken(t, "d1", RoleDealer), validBookingBody())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCreateBooking_CustomerFromToken(t *testing.T) {
	var got scheduling.CreateBookingInput
	svc := &fakeSvc{
		createBookingFn: func(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error) {
			got = in
			return domain.Booking{
				ID:         uuid.New(),
				DealerID:   in.DealerID,
				CustomerID: in.CustomerID,
				ServiceID:  in.ServiceID,
				Date:       domain.DateOnly(in.Date),
				StartTime:  "10:00",
				EndTime:    "12:00",
				Status:     domain.BookingStatusScheduled,
			}, nil
		},
	}
	router := newTestRouter(svc)

	body := validBookingBody()
	body["customer_id"] = "spoofed"
	rec := doJSON(t, router, http.MethodPost, "/api/v1/bookings", signToken(t, "c42", RoleCustomer), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if got.CustomerID != "c42" {
		t.Fatalf("customer_id = %q, want token identity c42", got.CustomerID)
	}

	var resp bookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EndTime != "12:00" {
		t.Fatalf("end_time = %q, want 12:00", resp.EndTime)
	}
}

func TestCreateBooking_RejectionReasonsSurfaced(t *testing.T) {
	tests := []struct {
		reason   scheduling.RejectionReason
		wantKind string
	}{
		{reason: scheduling.ReasonDealerUnavailable, wantKind: "DEALER_UNAVAILABLE"},
		{reason: scheduling.ReasonOutsideWindow, wantKind: "OUTSIDE_WINDOW"},
		{reason: scheduling.ReasonSlotTaken, wantKind: "SLOT_TAKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			svc := &fakeSvc{
				createBookingFn: func(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error) {
					return domain.Booking{}, &scheduling.RejectionError{Reason: tt.reason}
				},
			}
			router := newTestRouter(svc)

			rec := doJSON(t, router, http.MethodPost, "/api/v1/bookings", signToken(t, "c1", RoleCustomer), validBookingBody())
			if rec.Code != http.StatusConflict {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
			}
			if kind := decodeError(t, rec); kind != tt.wantKind {
				t.Fatalf("error_kind = %q, want %q", kind, tt.wantKind)
			}
		})
	}
}

func TestCreateBooking_ServiceNotFound(t *testing.T) {
	svc := &fakeSvc{
		createBookingFn: func(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error) {
			return domain.Booking{}, store.ErrNotFound
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/bookings", signToken(t, "c1", RoleCustomer), validBookingBody())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if kind := decodeError(t, rec); kind != "NOT_FOUND" {
		t.Fatalf("error_kind = %q, want NOT_FOUND", kind)
	}
}

func TestGetAvailability_Validation(t *testing.T) {
	router := newTestRouter(&fakeSvc{})

	tests := []struct {
		name string
		path string
	}{
		{name: "missing range", path: "/api/v1/dealers/d1/availability"},
		{name: "bad from", path: "/api/v1/dealers/d1/availability?from=junk&to=2024-06-30"},
		{name: "bad to", path: "/api/v1/dealers/d1/availability?from=2024-06-01&to=30-06-2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodGet, tt.path, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if kind := decodeError(t, rec); kind != "VALIDATION_ERROR" {
				t.Fatalf("error_kind = %q, want VALIDATION_ERROR", kind)
			}
		})
	}
}

func TestGetAvailability_ListsWindows(t *testing.T) {
	svc := &fakeSvc{
		getAvailabilityFn: func(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error) {
			return []domain.AvailabilityWindow{
				{
					ID:                  uuid.New(),
					DealerID:            dealerID,
					Date:                time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
					Status:              domain.AvailabilityStatusAvailable,
					StartTime:           "09:00",
					EndTime:             "17:00",
					SlotDurationMinutes: 60,
					MaxBookings:         4,
				},
			}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/dealers/d1/availability?from=2024-06-01&to=2024-06-30", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Windows []windowResponse `json:"windows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(body.Windows))
	}
	if body.Windows[0].Date != "2024-06-10" {
		t.Fatalf("date = %q, want 2024-06-10", body.Windows[0].Date)
	}
}

func TestSetAvailability_OtherDealerForbidden(t *testing.T) {
	router := newTestRouter(&fakeSvc{})

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/dealers/d1/availability/2024-06-10",
		signToken(t, "d2", RoleDealer), map[string]any{"available": true})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if kind := decodeError(t, rec); kind != "UNAUTHORIZED" {
		t.Fatalf("error_kind = %q, want UNAUTHORIZED", kind)
	}
}

func TestSetAvailability_Upserts(t *testing.T) {
	var gotDate time.Time
	var gotAvailable bool
	svc := &fakeSvc{
		setAvailabilityFn: func(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error) {
			gotDate = date
			gotAvailable = available
			return domain.AvailabilityWindow{
				ID:       uuid.New(),
				DealerID: dealerID,
				Date:     date,
				Status:   domain.AvailabilityStatusUnavailable,
			}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/dealers/d1/availability/2024-06-10",
		signToken(t, "d1", RoleDealer), map[string]any{"available": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if gotAvailable {
		t.Fatalf("available = true, want false")
	}
	if gotDate.Format("2006-01-02") != "2024-06-10" {
		t.Fatalf("date = %v", gotDate)
	}
}

func TestCreateWindow_DuplicateConflict(t *testing.T) {
	svc := &fakeSvc{
		createWindowFn: func(ctx context.Context, in scheduling.CreateWindowInput) (domain.AvailabilityWindow, error) {
			return domain.AvailabilityWindow{}, store.ErrConflict
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/dealers/d1/availability",
		signToken(t, "d1", RoleDealer), map[string]any{
			"date":                  "2024-06-10",
			"start_time":            "09:00",
			"end_time":              "17:00",
			"slot_duration_minutes": 60,
			"max_bookings":          4,
		})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if kind := decodeError(t, rec); kind != "CONFLICT" {
		t.Fatalf("error_kind = %q, want CONFLICT", kind)
	}
}

func TestTransitionStatus_InvalidTransition(t *testing.T) {
	svc := &fakeSvc{
		transitionFn: func(ctx context.Context, actorDealerID string, bookingID uuid.UUID, newStatus domain.BookingStatus, opts scheduling.TransitionOptions) (domain.Booking, error) {
			return domain.Booking{}, &scheduling.TransitionError{
				From: domain.BookingStatusCompleted,
				To:   newStatus,
			}
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/bookings/"+uuid.New().String()+"/status",
		signToken(t, "d1", RoleDealer), map[string]any{"status": "CANCELLED"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if kind := decodeError(t, rec); kind != "INVALID_TRANSITION" {
		t.Fatalf("error_kind = %q, want INVALID_TRANSITION", kind)
	}
}

func TestTransitionStatus_PassesReasonAndActor(t *testing.T) {
	var gotActor string
	var gotOpts scheduling.TransitionOptions
	svc := &fakeSvc{
		transitionFn: func(ctx context.Context, actorDealerID string, bookingID uuid.UUID, newStatus domain.BookingStatus, opts scheduling.TransitionOptions) (domain.Booking, error) {
			gotActor = actorDealerID
			gotOpts = opts
			now := time.Now().UTC()
			return domain.Booking{
				ID:           bookingID,
				DealerID:     actorDealerID,
				Status:       newStatus,
				CancelledAt:  &now,
				CancelReason: opts.CancellationReason,
			}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/bookings/"+uuid.New().String()+"/status",
		signToken(t, "d7", RoleDealer), map[string]any{"status": "CANCELLED", "reason": "equipment failure"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if gotActor != "d7" {
		t.Fatalf("actor = %q, want d7", gotActor)
	}
	if gotOpts.CancellationReason != "equipment failure" {
		t.Fatalf("reason = %q", gotOpts.CancellationReason)
	}
}

func TestTransitionStatus_CustomerForbidden(t *testing.T) {
	router := newTestRouter(&fakeSvc{})

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/bookings/"+uuid.New().String()+"/status",
		signToken(t, "c1", RoleCustomer), map[string]any{"status": "CANCELLED"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	router := newTestRouter(&fakeSvc{})

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: signWith(t, []byte("other-secret"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/bookings", tt.token, validBookingBody())
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func signWith(t *testing.T, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "c1", Role: RoleCustomer})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}
	return signed
}

func TestHealthz(t *testing.T) {
	server := NewServer(&fakeSvc{}, nil, func(ctx context.Context) error { return nil })
	router := server.Router(testSecret)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
