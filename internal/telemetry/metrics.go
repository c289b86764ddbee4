// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the query and sync pipelines.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// Namespace prefixes every metric name.
const Namespace = "sercha_kb"

// Ensure Metrics implements the interface.
var _ driven.PipelineMetrics = (*Metrics)(nil)

// Metrics records pipeline observations in a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	queries          *prometheus.CounterVec
	queryLatency     *prometheus.HistogramVec
	queryBestScore   prometheus.Histogram
	syncDocuments    *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// NewMetrics creates metrics registered in a fresh registry, together
// with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: status (answered, not_in_kb, error)
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "query",
			Name:      "total",
			Help:      "Questions handled, by outcome status",
		}, []string{"status"}),

		queryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "query",
			Name:      "latency_seconds",
			Help:      "End-to-end question latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),

		queryBestScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "query",
			Name:      "best_score",
			Help:      "Distribution of the best retrieval score per question",
			Buckets:   []float64{-0.5, 0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),

		// Labels: outcome (indexed, unchanged, failed)
		syncDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sync",
			Name:      "documents_total",
			Help:      "Documents processed by sync runs, by outcome",
		}, []string{"outcome"}),

		// Labels: kind (embedding, generation, vector_index), result (ok, timeout, error)
		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Calls to external providers, by kind and result",
		}, []string{"kind", "result"}),

		providerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "External provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// ObserveQuery implements driven.PipelineMetrics.
func (m *Metrics) ObserveQuery(status domain.QueryStatus, bestScore float64, latency time.Duration) {
	m.queries.WithLabelValues(string(status)).Inc()
	m.queryLatency.WithLabelValues(string(status)).Observe(latency.Seconds())
	if status != domain.QueryStatusError {
		m.queryBestScore.Observe(bestScore)
	}
}

// ObserveSyncDocument implements driven.PipelineMetrics.
func (m *Metrics) ObserveSyncDocument(outcome string) {
	m.syncDocuments.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall implements driven.PipelineMetrics.
func (m *Metrics) ObserveProviderCall(kind string, latency time.Duration, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errs.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		result = "timeout"
	default:
		result = "error"
	}
	m.providerCalls.WithLabelValues(kind, result).Inc()
	m.providerDuration.WithLabelValues(kind).Observe(latency.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
