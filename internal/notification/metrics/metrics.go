package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Delivered *prometheus.CounterVec
	Dropped   prometheus.Counter
	Published prometheus.Counter
	Failures  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docsign_notifications_delivered_total",
			Help: "Notifications persisted, by type",
		}, []string{"type"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_notifications_dropped_total",
			Help: "Notifications dropped because the buffer was full or closed",
		}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_notifications_published_total",
			Help: "Notifications published to Kafka",
		}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docsign_notification_failures_total",
			Help: "Notification delivery failures by stage",
		}, []string{"stage"}),
	}
}

func (m *Metrics) IncrementFailure(stage string) {
	m.Failures.WithLabelValues(stage).Inc()
}
