package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification and its side effects.
type Metrics struct {
	Verifications  *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
	RecordsDropped prometheus.Counter
	KeyCacheHits   prometheus.Counter
	KeyCacheMisses prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docsign_verifications_total",
			Help: "Verification decisions by entry point and status",
		}, []string{"method", "status"}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docsign_verify_duration_seconds",
			Help:    "Duration of the verification decision chain",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		RecordsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_verification_records_dropped_total",
			Help: "Verification records lost to a full buffer or a failed write",
		}),
		KeyCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_public_key_cache_hits_total",
			Help: "Certificate public keys served from Redis",
		}),
		KeyCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_public_key_cache_misses_total",
			Help: "Certificate public keys loaded from the certificate store",
		}),
	}
}

// ObserveVerify records the chain duration and its outcome.
func (m *Metrics) ObserveVerify(start time.Time, method, status string) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
	m.Verifications.WithLabelValues(method, status).Inc()
}
