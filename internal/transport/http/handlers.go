package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"solarbook/backend/internal/domain"
	"solarbook/backend/internal/metrics"
	"solarbook/backend/internal/service/scheduling"
	"solarbook/backend/internal/store"
)

const dateLayout = "2006-01-02"

type bookingResponse struct {
	ID             string     `json:"id"`
	DealerID       string     `json:"dealer_id"`
	CustomerID     string     `json:"customer_id"`
	ServiceID      string     `json:"service_id"`
	QuoteRef       string     `json:"quote_ref,omitempty"`
	Date           string     `json:"date"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	EstimatedHours int        `json:"estimated_hours"`
	Status         string     `json:"status"`
	TotalAmount    float64    `json:"total_amount"`
	ContactName    string     `json:"contact_name,omitempty"`
	ContactPhone   string     `json:"contact_phone,omitempty"`
	Address        string     `json:"address,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:             b.ID.String(),
		DealerID:       b.DealerID,
		CustomerID:     b.CustomerID,
		ServiceID:      b.ServiceID.String(),
		QuoteRef:       b.QuoteRef,
		Date:           b.Date.Format(dateLayout),
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		EstimatedHours: b.EstimatedHours,
		Status:         string(b.Status),
		TotalAmount:    b.TotalAmount,
		ContactName:    b.ContactName,
		ContactPhone:   b.ContactPhone,
		Address:        b.Address,
		CancelReason:   b.CancelReason,
		CompletedAt:    b.CompletedAt,
		CancelledAt:    b.CancelledAt,
		CreatedAt:      b.CreatedAt,
	}
}

type windowResponse struct {
	ID                  string `json:"id"`
	DealerID            string `json:"dealer_id"`
	Date                string `json:"date"`
	Status              string `json:"status"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	MaxBookings         int    `json:"max_bookings"`
}

func toWindowResponse(w domain.AvailabilityWindow) windowResponse {
	return windowResponse{
		ID:                  w.ID.String(),
		DealerID:            w.DealerID,
		Date:                w.Date.Format(dateLayout),
		Status:              string(w.Status),
		StartTime:           w.StartTime,
		EndTime:             w.EndTime,
		SlotDurationMinutes: w.SlotDurationMinutes,
		MaxBookings:         w.MaxBookings,
	}
}

type createBookingRequest struct {
	DealerID       string `json:"dealer_id" binding:"required"`
	ServiceID      string `json:"service_id" binding:"required"`
	QuoteRef       string `json:"quote_ref"`
	Date           string `json:"date" binding:"required"`
	StartTime      string `json:"start_time" binding:"required"`
	EstimatedHours int    `json:"estimated_hours" binding:"required"`
	ContactName    string `json:"contact_name"`
	ContactPhone   string `json:"contact_phone"`
	Address        string `json:"address"`
}

func (s *Server) handleCreateBooking(c *gin.Context) {
	claims, ok := requireCustomer(c)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "service_id must be a UUID")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}

	booking, err := s.svc.CreateBooking(c.Request.Context(), scheduling.CreateBookingInput{
		DealerID:       req.DealerID,
		CustomerID:     claims.UserID,
		ServiceID:      serviceID,
		QuoteRef:       req.QuoteRef,
		Date:           date,
		StartTime:      req.StartTime,
		EstimatedHours: req.EstimatedHours,
		ContactName:    req.ContactName,
		ContactPhone:   req.ContactPhone,
		Address:        req.Address,
	})
	if err != nil {
		var rErr *scheduling.RejectionError
		if errors.As(err, &rErr) {
			metrics.IncBookingRejected(string(rErr.Reason))
		}
		s.writeError(c, err, slog.String("dealer_id", req.DealerID), slog.String("customer_id", claims.UserID))
		return
	}

	metrics.IncBookingAdmitted()
	s.log.Info(
		"booking admitted",
		slog.String("booking_id", booking.ID.String()),
		slog.String("dealer_id", booking.DealerID),
		slog.String("date", booking.Date.Format(dateLayout)),
		slog.String("start_time", booking.StartTime),
		slog.String("end_time", booking.EndTime),
	)
	c.JSON(http.StatusCreated, toBookingResponse(booking))
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) handleTransitionStatus(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok || claims.Role != RoleDealer {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error_kind": "UNAUTHORIZED",
			"message":    "only dealers may transition booking status",
		})
		return
	}

	bookingID, err := uuid.Parse(c.Param("bookingID"))
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "booking id must be a UUID")
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	booking, err := s.svc.Transition(c.Request.Context(), claims.UserID, bookingID, domain.BookingStatus(req.Status), scheduling.TransitionOptions{
		CancellationReason: req.Reason,
	})
	if err != nil {
		s.writeError(c, err, slog.String("booking_id", bookingID.String()), slog.String("dealer_id", claims.UserID))
		return
	}

	metrics.IncStatusTransition(string(booking.Status))
	s.log.Info(
		"booking status changed",
		slog.String("booking_id", booking.ID.String()),
		slog.String("status", string(booking.Status)),
	)
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (s *Server) handleGetAvailability(c *gin.Context) {
	dealerID := c.Param("dealerID")

	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "to must be YYYY-MM-DD")
		return
	}

	windows, err := s.svc.GetAvailability(c.Request.Context(), dealerID, from, to)
	if err != nil {
		s.writeError(c, err, slog.String("dealer_id", dealerID))
		return
	}

	out := make([]windowResponse, 0, len(windows))
	for _, w := range windows {
		out = append(out, toWindowResponse(w))
	}
	c.JSON(http.StatusOK, gin.H{"windows": out})
}

type createWindowRequest struct {
	Date                string `json:"date" binding:"required"`
	Status              string `json:"status"`
	StartTime           string `json:"start_time" binding:"required"`
	EndTime             string `json:"end_time" binding:"required"`
	SlotDurationMinutes int    `json:"slot_duration_minutes" binding:"required"`
	MaxBookings         int    `json:"max_bookings" binding:"required"`
}

func (s *Server) handleCreateWindow(c *gin.Context) {
	dealerID := c.Param("dealerID")
	if _, ok := requireDealer(c, dealerID); !ok {
		return
	}

	var req createWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}

	window, err := s.svc.CreateWindow(c.Request.Context(), scheduling.CreateWindowInput{
		DealerID:            dealerID,
		Date:                date,
		Status:              domain.AvailabilityStatus(req.Status),
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
		MaxBookings:         req.MaxBookings,
	})
	if err != nil {
		s.writeError(c, err, slog.String("dealer_id", dealerID), slog.String("date", req.Date))
		return
	}

	metrics.IncAvailabilityUpdated()
	c.JSON(http.StatusCreated, toWindowResponse(window))
}

type setAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

func (s *Server) handleSetAvailability(c *gin.Context) {
	dealerID := c.Param("dealerID")
	if _, ok := requireDealer(c, dealerID); !ok {
		return
	}

	date, err := time.Parse(dateLayout, c.Param("date"))
	if err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}

	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	window, err := s.svc.SetAvailability(c.Request.Context(), dealerID, date, *req.Available)
	if err != nil {
		s.writeError(c, err, slog.String("dealer_id", dealerID))
		return
	}

	metrics.IncAvailabilityUpdated()
	c.JSON(http.StatusOK, toWindowResponse(window))
}

type bulkSetAvailabilityRequest struct {
	Dates []struct {
		Date      string `json:"date" binding:"required"`
		Available *bool  `json:"available" binding:"required"`
	} `json:"dates" binding:"required"`
}

func (s *Server) handleBulkSetAvailability(c *gin.Context) {
	dealerID := c.Param("dealerID")
	if _, ok := requireDealer(c, dealerID); !ok {
		return
	}

	var req bulkSetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	flags := make([]scheduling.DateFlag, 0, len(req.Dates))
	for _, d := range req.Dates {
		date, err := time.Parse(dateLayout, d.Date)
		if err != nil {
			writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
			return
		}
		flags = append(flags, scheduling.DateFlag{Date: date, Available: *d.Available})
	}

	applied, err := s.svc.BulkSetAvailability(c.Request.Context(), dealerID, flags)
	out := make([]windowResponse, 0, len(applied))
	for _, w := range applied {
		out = append(out, toWindowResponse(w))
		metrics.IncAvailabilityUpdated()
	}
	if err != nil {
		// Earlier upserts stay applied; report them alongside the failure.
		s.log.Warn("bulk availability update partially applied",
			slog.String("dealer_id", dealerID),
			slog.Int("applied", len(applied)),
			slog.Any("err", err),
		)
		c.JSON(http.StatusMultiStatus, gin.H{
			"windows":    out,
			"error_kind": "INTERNAL",
			"message":    "some dates were not updated",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"windows": out})
}

// writeError maps service and store errors onto HTTP statuses and stable
// error kinds the UI can branch on.
func (s *Server) writeError(c *gin.Context, err error, attrs ...any) {
	var vErr *scheduling.ValidationError
	if errors.As(err, &vErr) {
		s.log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
		writeErrorKind(c, http.StatusBadRequest, "VALIDATION_ERROR", vErr.Error())
		return
	}

	var rErr *scheduling.RejectionError
	if errors.As(err, &rErr) {
		s.log.Info("booking rejected", append([]any{slog.String("reason", string(rErr.Reason))}, attrs...)...)
		writeErrorKind(c, http.StatusConflict, string(rErr.Reason), rErr.Error())
		return
	}

	var tErr *scheduling.TransitionError
	if errors.As(err, &tErr) {
		s.log.Info("transition rejected", append([]any{slog.Any("err", err)}, attrs...)...)
		writeErrorKind(c, http.StatusConflict, "INVALID_TRANSITION", tErr.Error())
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErrorKind(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, store.ErrConflict):
		writeErrorKind(c, http.StatusConflict, "CONFLICT", "an availability window already exists for that date")
	case errors.Is(err, scheduling.ErrUnauthorized):
		writeErrorKind(c, http.StatusForbidden, "UNAUTHORIZED", "you do not own this resource")
	default:
		s.log.Error("request failed", append([]any{slog.Any("err", err)}, attrs...)...)
		writeErrorKind(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeErrorKind(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{"error_kind": kind, "message": message})
}
