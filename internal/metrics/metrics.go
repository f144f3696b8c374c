// Package metrics defines the Prometheus collectors for indexing and search
// and exposes an HTTP handler for scraping.
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without metrics in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Index names used as label values.
const (
	IndexFields   = "fields"
	IndexFulltext = "fulltext"
)

// Metrics holds the collectors.
type Metrics struct {
	EntriesIndexed     *prometheus.CounterVec
	DocumentsWritten   prometheus.Counter
	FilesSkipped       *prometheus.CounterVec
	ExtractionFailures prometheus.Counter
	BatchDuration      *prometheus.HistogramVec
	SearchDuration     *prometheus.HistogramVec
	SearchResults      prometheus.Histogram
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	EventsConsumed     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		EntriesIndexed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bibsearch_entries_indexed_total",
				Help: "Entries written to an index, by index.",
			},
			[]string{"index"},
		),
		DocumentsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bibsearch_fulltext_documents_written_total",
				Help: "Page documents written to the full-text index.",
			},
		),
		FilesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bibsearch_fulltext_files_skipped_total",
				Help: "Linked files not (re)indexed, by reason.",
			},
			[]string{"reason"},
		),
		ExtractionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bibsearch_fulltext_extraction_failures_total",
				Help: "Linked files whose text extraction failed.",
			},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bibsearch_index_batch_duration_seconds",
				Help:    "Duration of indexing batches, by index.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"index"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bibsearch_search_duration_seconds",
				Help:    "Index query execution latency, by cache status.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bibsearch_search_results_count",
				Help:    "Entries returned per index query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bibsearch_search_cache_hits_total",
				Help: "Search result cache hits.",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bibsearch_search_cache_misses_total",
				Help: "Search result cache misses.",
			},
		),
		EventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bibsearch_events_consumed_total",
				Help: "Library change events consumed, by type and status.",
			},
			[]string{"type", "status"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.EntriesIndexed,
		m.DocumentsWritten,
		m.FilesSkipped,
		m.ExtractionFailures,
		m.BatchDuration,
		m.SearchDuration,
		m.SearchResults,
		m.CacheHits,
		m.CacheMisses,
		m.EventsConsumed,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EntryIndexed(index string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EntriesIndexed.WithLabelValues(index).Add(float64(n))
}

func (m *Metrics) DocumentsAdded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DocumentsWritten.Add(float64(n))
}

func (m *Metrics) FileSkipped(reason string) {
	if m == nil {
		return
	}
	m.FilesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ExtractionFailed() {
	if m == nil {
		return
	}
	m.ExtractionFailures.Inc()
}

func (m *Metrics) ObserveBatch(index string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(index).Observe(d.Seconds())
}

func (m *Metrics) ObserveSearch(cacheStatus string, d time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(cacheStatus).Observe(d.Seconds())
	m.SearchResults.Observe(float64(results))
	switch cacheStatus {
	case "hit":
		m.CacheHits.Inc()
	case "miss":
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) EventConsumed(eventType, status string) {
	if m == nil {
		return
	}
	m.EventsConsumed.WithLabelValues(eventType, status).Inc()
}
