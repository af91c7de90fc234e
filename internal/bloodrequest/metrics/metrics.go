package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the request lifecycle module.
type Metrics struct {
	RequestsCreated   prometheus.Counter
	RequestsAccepted  prometheus.Counter
	AcceptConflicts   prometheus.Counter
	RequestsCompleted prometheus.Counter
	RequestsReaped    prometheus.Counter
	AcceptDuration    prometheus.Histogram
	ConfirmDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_blood_requests_created_total",
			Help: "Total number of blood requests created",
		}),
		RequestsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_blood_requests_accepted_total",
			Help: "Total number of blood requests accepted by a donor",
		}),
		AcceptConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_blood_request_accept_conflicts_total",
			Help: "Accept attempts that lost the race or hit a non-open request",
		}),
		RequestsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_blood_requests_completed_total",
			Help: "Total number of blood requests confirmed completed",
		}),
		RequestsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_blood_requests_reaped_total",
			Help: "Open blood requests removed by the expiry reaper",
		}),
		AcceptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "swasthya_blood_request_accept_duration_seconds",
			Help:    "Duration of accept operations (race-critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ConfirmDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "swasthya_blood_request_confirm_duration_seconds",
			Help:    "Duration of completion confirmations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveAccept records the duration of an Accept operation.
func (m *Metrics) ObserveAccept(start time.Time) {
	m.AcceptDuration.Observe(time.Since(start).Seconds())
}

// ObserveConfirm records the duration of a ConfirmCompletion operation.
func (m *Metrics) ObserveConfirm(start time.Time) {
	m.ConfirmDuration.Observe(time.Since(start).Seconds())
}
