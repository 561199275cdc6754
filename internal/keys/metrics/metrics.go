package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for key material management.
type Metrics struct {
	KeyPairsGenerated   prometheus.Counter
	KeygenDuration      prometheus.Histogram
	KeygenInFlight      prometheus.Gauge
	CertificatesIssued  prometheus.Counter
	CertificatesRevoked prometheus.Counter
}

// New creates a new Metrics instance with all key module metrics registered.
func New() *Metrics {
	return &Metrics{
		KeyPairsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_key_pairs_generated_total",
			Help: "Total number of organization key pairs generated",
		}),
		KeygenDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docsign_keygen_duration_seconds",
			Help:    "Duration of RSA key generation including semaphore wait",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		KeygenInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "docsign_keygen_in_flight",
			Help: "Key generations currently holding a semaphore slot",
		}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_certificates_issued_total",
			Help: "Total number of signing certificates issued",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_certificates_revoked_total",
			Help: "Total number of signing certificates revoked",
		}),
	}
}

// ObserveKeygen records the duration of a key generation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveKeygen(start time.Time) {
	m.KeygenDuration.Observe(time.Since(start).Seconds())
}
