package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinic_booking"

// Metrics holds all application metrics
type Metrics struct {
	// Booking lifecycle
	BookingsCreated    *prometheus.CounterVec
	BookingTransitions *prometheus.CounterVec
	SlotConflicts      prometheus.Counter
	CapacityRejections prometheus.Counter

	// Scheduling
	HoursResolved  *prometheus.CounterVec
	SlotsProjected prometheus.Counter

	// Side effects
	Refunds       *prometheus.CounterVec
	RatingUpdates *prometheus.CounterVec
	RetryJobs     *prometheus.CounterVec
	EventsFailed  prometheus.Counter

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates all application metrics and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() so repeated construction never
// collides.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created, by payment method",
		}, []string{"payment_method"}),
		BookingTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Successful booking status transitions",
		}, []string{"from", "to"}),
		SlotConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_claim_conflicts_total",
			Help:      "Slot claims that lost to a concurrent claimer or found the slot unavailable",
		}),
		CapacityRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Bookings rejected because a limited provider was full for the day",
		}),

		HoursResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "working_hours_resolutions_total",
			Help:      "Working hours resolutions by outcome (clinic, closed, fallback)",
		}, []string{"outcome"}),
		SlotsProjected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_projected_total",
			Help:      "Ephemeral slots returned by listings for dates without persisted slots",
		}),

		Refunds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refunds_total",
			Help:      "Wallet refund attempts by outcome",
		}, []string{"outcome"}),
		RatingUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_updates_total",
			Help:      "Provider rating aggregation attempts by outcome",
		}, []string{"outcome"}),
		RetryJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_jobs_total",
			Help:      "Out-of-band retry jobs by task type and stage",
		}, []string{"task", "stage"}),
		EventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_failed_total",
			Help:      "BookingStatusChanged events that could not be published",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}
