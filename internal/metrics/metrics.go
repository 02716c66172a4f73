package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "careerbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "careerbook",
			Name:      "bookings_total",
			Help:      "Booking attempts by result (booked, conflict, invalid, not_found, error).",
		},
		[]string{"result"},
	)

	reminders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "careerbook",
			Name:      "reminders_total",
			Help:      "Reminder jobs by outcome (scheduled, skipped, sent, failed).",
		},
		[]string{"outcome"},
	)

	entitlementTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "careerbook",
			Name:      "entitlement_transitions_total",
			Help:      "Entitlement state transitions (activated, submitted, approved, denied, expired).",
		},
		[]string{"transition"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, reminders, entitlementTransitions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBooking records a booking attempt outcome.
func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

// IncReminder records a reminder job outcome.
func IncReminder(outcome string) {
	reminders.WithLabelValues(outcome).Inc()
}

// IncEntitlement records an entitlement transition.
func IncEntitlement(transition string) {
	entitlementTransitions.WithLabelValues(transition).Inc()
}
