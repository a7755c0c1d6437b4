// Package http exposes the scheduling service over a JSON HTTP API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solarbook/backend/internal/domain"
	"solarbook/backend/internal/service/scheduling"
)

// schedulingService is the surface of the scheduling service the transport
// depends on.
type schedulingService interface {
	CreateBooking(ctx context.Context, in scheduling.CreateBookingInput) (domain.Booking, error)
	Transition(ctx context.Context, actorDealerID string, bookingID uuid.UUID, newStatus domain.BookingStatus, opts scheduling.TransitionOptions) (domain.Booking, error)
	GetAvailability(ctx context.Context, dealerID string, from, to time.Time) ([]domain.AvailabilityWindow, error)
	CreateWindow(ctx context.Context, in scheduling.CreateWindowInput) (domain.AvailabilityWindow, error)
	SetAvailability(ctx context.Context, dealerID string, date time.Time, available bool) (domain.AvailabilityWindow, error)
	BulkSetAvailability(ctx context.Context, dealerID string, flags []scheduling.DateFlag) ([]domain.AvailabilityWindow, error)
}

type Server struct {
	svc  schedulingService
	log  *slog.Logger
	ping func(ctx context.Context) error
}

func NewServer(svc schedulingService, log *slog.Logger, ping func(ctx context.Context) error) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:  svc,
		log:  log.With(slog.String("component", "http")),
		ping: ping,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(jwtSecret []byte) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Calendar display is public.
	v1.GET("/dealers/:dealerID/availability", s.handleGetAvailability)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(jwtSecret))
	{
		authed.POST("/bookings", s.handleCreateBooking)
		authed.PATCH("/bookings/:bookingID/status", s.handleTransitionStatus)

		authed.PUT("/dealers/:dealerID/availability", s.handleCreateWindow)
		authed.PATCH("/dealers/:dealerID/availability/:date", s.handleSetAvailability)
		authed.POST("/dealers/:dealerID/availability/bulk", s.handleBulkSetAvailability)
	}

	return router
}

func (s *Server) handleHealthz(c *gin.Context) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.log.Error("health check failed", slog.Any("err", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
