package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the prescription pipeline.
type Metrics struct {
	Submitted        prometheus.Counter
	Confirmed        prometheus.Counter
	Rejected         prometheus.Counter
	ResolveConflicts prometheus.Counter
	ResolveDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_prescriptions_submitted_total",
			Help: "Total number of prescriptions submitted",
		}),
		Confirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_prescriptions_confirmed_total",
			Help: "Total number of prescriptions confirmed by a pharmacist",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_prescriptions_rejected_total",
			Help: "Total number of prescriptions rejected by a pharmacist",
		}),
		ResolveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_prescription_resolve_conflicts_total",
			Help: "Confirm/reject attempts against an already resolved prescription",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "swasthya_prescription_resolve_duration_seconds",
			Help:    "Duration of confirm/reject operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveResolve records the duration of a confirm or reject operation.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
