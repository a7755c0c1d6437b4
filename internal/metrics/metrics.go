package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingAdmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solarbook",
			Name:      "booking_admitted_total",
			Help:      "Count of bookings admitted.",
		},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solarbook",
			Name:      "booking_rejected_total",
			Help:      "Count of booking requests rejected by reason.",
		},
		[]string{"reason"},
	)

	statusTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solarbook",
			Name:      "booking_transition_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	availabilityUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solarbook",
			Name:      "availability_updated_total",
			Help:      "Count of availability window writes.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingAdmitted, bookingRejected, statusTransition, availabilityUpdated)
	})
}

func IncBookingAdmitted() {
	bookingAdmitted.Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncStatusTransition(status string) {
	statusTransition.WithLabelValues(status).Inc()
}

func IncAvailabilityUpdated() {
	availabilityUpdated.Inc()
}
