// Package metrics holds the Prometheus collectors for ingestion and query
// traffic. All collectors live on a dedicated registry exposed by Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeEmbedError    = "embed_error"
	OutcomeSearchError   = "search_error"
	OutcomeGenerateError = "generate_error"
)

// Metrics is the set of pdfrag collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ingestedRecords *prometheus.CounterVec
	skippedUnits    *prometheus.CounterVec
	upsertBatches   prometheus.Counter
	queries         *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
	queryDuration   prometheus.Histogram
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdfrag_ingested_records_total",
			Help: "Vector records upserted, by record type.",
		}, []string{"type"}),
		skippedUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdfrag_skipped_units_total",
			Help: "Chunks, images and matches skipped, by reason.",
		}, []string{"reason"}),
		upsertBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdfrag_upsert_batches_total",
			Help: "Upsert batches sent to the vector index.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdfrag_queries_total",
			Help: "Answered queries, by outcome.",
		}, []string{"outcome"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdfrag_ingest_duration_seconds",
			Help:    "Wall time of one document ingestion.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdfrag_query_duration_seconds",
			Help:    "Wall time of one query from embedding to answer.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestedRecords,
		m.skippedUnits,
		m.upsertBatches,
		m.queries,
		m.ingestDuration,
		m.queryDuration,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordIngested(recordType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestedRecords.WithLabelValues(recordType).Add(float64(n))
}

func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedUnits.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordBatch() {
	if m == nil {
		return
	}
	m.upsertBatches.Inc()
}

func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
}
