package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document module.
type Metrics struct {
	DocumentsCreated prometheus.Counter
	DocumentsSigned  prometheus.Counter
	DocumentsRevoked prometheus.Counter
	SignDuration     prometheus.Histogram
	CreateDuration   prometheus.Histogram
	BatchItems       *prometheus.CounterVec
}

// New creates a new Metrics instance with all document module metrics registered.
func New() *Metrics {
	return &Metrics{
		DocumentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_documents_created_total",
			Help: "Total number of documents registered",
		}),
		DocumentsSigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_documents_signed_total",
			Help: "Total number of successful document signatures",
		}),
		DocumentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docsign_documents_revoked_total",
			Help: "Total number of document revocations",
		}),
		SignDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docsign_sign_duration_seconds",
			Help:    "Duration of Sign operations including the row lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docsign_create_document_duration_seconds",
			Help:    "Duration of document creation including content hashing",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		BatchItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docsign_batch_items_total",
			Help: "Batch items processed by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

// ObserveSign records the duration of a Sign operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSign(start time.Time) {
	m.SignDuration.Observe(time.Since(start).Seconds())
}

// ObserveCreate records the duration of a Create operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementBatchItem(operation string, success bool) {
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.BatchItems.WithLabelValues(operation, outcome).Inc()
}
