package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the booking engine collectors.
type Metrics struct {
	BookingAttempts    *prometheus.CounterVec
	RescheduleAttempts *prometheus.CounterVec
	StatusChanges      *prometheus.CounterVec
	BookingLatency     prometheus.Histogram
	ExpiredHolds       prometheus.Counter
	EventPublishErrors prometheus.Counter
}

// New registers the collectors on reg. Tests pass a fresh registry so that
// repeated construction never collides.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		RescheduleAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedule_attempts_total",
			Help:      "Reschedule attempts by outcome",
		}, []string{"outcome"}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Appointment status transitions by target status",
		}, []string{"to"}),
		BookingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "Time spent inside the booking critical section",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		ExpiredHolds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_payment_holds_total",
			Help:      "AwaitingPayment appointments cancelled by the expiry worker",
		}),
		EventPublishErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Appointment events that could not be published",
		}),
	}
}

// NewUnregistered is for callers that do not expose metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry(), "clinic")
}
