package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification bus.
type Metrics struct {
	Subscribers prometheus.Gauge
	Published   prometheus.Counter
	Delivered   prometheus.Counter
	Dropped     prometheus.Counter
}

// New creates a new Metrics instance with all bus metrics registered.
func New() *Metrics {
	return &Metrics{
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "swasthya_notify_subscribers",
			Help: "Live notification subscriptions",
		}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_notify_published_total",
			Help: "Notifications published to the bus",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_notify_delivered_total",
			Help: "Notifications delivered to a subscriber channel",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "swasthya_notify_dropped_total",
			Help: "Notifications dropped because a subscriber buffer was full",
		}),
	}
}
