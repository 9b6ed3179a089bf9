// Package metrics exposes Prometheus instrumentation for the ingest path,
// the drain worker, the rollup engine, analytics queries, and live delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulse"

// Metrics bundles every collector the application registers.
type Metrics struct {
	IngestRequests      *prometheus.CounterVec
	IngestEventsTotal   prometheus.Counter
	IngestFallbackTotal prometheus.Counter
	IngestDuration      prometheus.Histogram

	WorkerBatchesTotal prometheus.Counter
	WorkerEventsTotal  prometheus.Counter
	WorkerPoisonTotal  prometheus.Counter
	WorkerBatchLatency prometheus.Histogram

	RollupRunsTotal prometheus.Counter
	RollupDuration  prometheus.Histogram

	AnalyticsRequests *prometheus.CounterVec
	AnalyticsDuration *prometheus.HistogramVec

	LiveConnectionsGauge prometheus.Gauge
	LivePublishTotal     prometheus.Counter
}

// New registers and returns every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "requests_total",
			Help: "Ingest requests by outcome.",
		}, []string{"outcome"}),
		IngestEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "events_accepted_total",
			Help: "Events accepted across all ingest requests.",
		}),
		IngestFallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "fallback_total",
			Help: "Ingest batches that fell back to a direct store write.",
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "duration_seconds",
			Help: "Ingest request latency.", Buckets: prometheus.DefBuckets,
		}),

		WorkerBatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "batches_total",
			Help: "Buffer batches drained.",
		}),
		WorkerEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "events_persisted_total",
			Help: "Events persisted by the drain worker.",
		}),
		WorkerPoisonTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "poison_messages_total",
			Help: "Buffer records discarded for failing to parse.",
		}),
		WorkerBatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "batch_duration_seconds",
			Help: "Time to drain, persist, publish, and ack one batch.", Buckets: prometheus.DefBuckets,
		}),

		RollupRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rollup", Name: "runs_total",
			Help: "Current-hour rollup recompute passes.",
		}),
		RollupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "rollup", Name: "duration_seconds",
			Help: "Rollup recompute pass latency.", Buckets: prometheus.DefBuckets,
		}),

		AnalyticsRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analytics", Name: "requests_total",
			Help: "Analytics queries by operation.",
		}, []string{"operation"}),
		AnalyticsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analytics", Name: "duration_seconds",
			Help: "Analytics query latency by operation.", Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		LiveConnectionsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "live", Name: "connections",
			Help: "Currently open websocket connections on this replica.",
		}),
		LivePublishTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "live", Name: "publish_total",
			Help: "Events published onto the live channel.",
		}),
	}
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
