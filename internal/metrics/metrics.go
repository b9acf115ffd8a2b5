// Package metrics exposes pipeline counters to Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docchunk"

type Metrics struct {
	registry *prometheus.Registry

	documents        *prometheus.CounterVec
	chunks           prometheus.Counter
	enrichments      *prometheus.CounterVec
	enrichDuration   prometheus.Histogram
	embeddingBatches *prometheus.CounterVec
	storeWrites      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents seen by the pipeline, by outcome.",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks produced by the boundary chunker.",
		}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Chunk metadata extractions, by outcome.",
		}, []string{"outcome"}),
		enrichDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_duration_seconds",
			Help:      "Time to enrich one chunk, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		embeddingBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_total",
			Help:      "Embedding requests after retries, by outcome.",
		}, []string{"outcome"}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Records handed to the sink, by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.documents, m.chunks, m.enrichments, m.enrichDuration, m.embeddingBatches, m.storeWrites,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// Document counts a document as processed, failed or duplicate.
func (m *Metrics) Document(result string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(result).Inc()
}

func (m *Metrics) Chunks(n int) {
	if m == nil {
		return
	}
	m.chunks.Add(float64(n))
}

func (m *Metrics) Enrichment(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(outcome(err)).Inc()
	m.enrichDuration.Observe(d.Seconds())
}

func (m *Metrics) EmbeddingBatch(_ int, err error) {
	if m == nil {
		return
	}
	m.embeddingBatches.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) StoreWrite(err error) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(outcome(err)).Inc()
}
