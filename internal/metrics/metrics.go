package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "api_requests_total",
			Help:      "Requests sent to the booking API by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roombook",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of booking API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	bookingSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "booking_submitted_total",
			Help:      "Booking submissions by result.",
		},
		[]string{"result"},
	)

	bookingCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "booking_canceled_total",
			Help:      "Bookings deleted from the front end.",
		},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roombook",
			Name:      "login_total",
			Help:      "Login attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, apiDuration, bookingSubmitted, bookingCanceled, logins)
	})
}

func ObserveRequest(operation, outcome string, took time.Duration) {
	apiRequests.WithLabelValues(operation, outcome).Inc()
	apiDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func IncBookingSubmitted(result string) {
	bookingSubmitted.WithLabelValues(result).Inc()
}

func IncBookingCanceled() {
	bookingCanceled.Inc()
}

func IncLogin(result string) {
	logins.WithLabelValues(result).Inc()
}
