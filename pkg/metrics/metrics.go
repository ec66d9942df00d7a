package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Ingestion metrics
	IngestionTicks        prometheus.Counter
	IngestionTickDuration prometheus.Histogram
	ReadingsStored        *prometheus.CounterVec
	ReadingsFailed        *prometheus.CounterVec

	// Alert metrics
	AlertsCreated    *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	AlertsEscalated  prometheus.Counter

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestionTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks",
		}),
		IngestionTickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tick_duration_seconds",
			Help:      "Time spent processing one scheduler tick",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		ReadingsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "readings_stored_total",
			Help:      "Total number of vitals readings persisted",
		}, []string{"source"}),
		ReadingsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "readings_failed_total",
			Help:      "Total number of patients whose reading could not be processed",
		}, []string{"stage"}),

		AlertsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Total number of alerts persisted",
		}, []string{"type", "severity"}),
		AlertsSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total number of candidate alerts discarded as duplicates",
		}, []string{"type"}),
		AlertsEscalated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "escalated_total",
			Help:      "Total number of alerts escalated by the sweep",
		}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// NewNop returns metrics registered against a throwaway registry
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "postop")
}
