package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the extraction service.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	Registry           *prometheus.Registry
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	FailuresTotal      *prometheus.CounterVec
	CapturedTotal      *prometheus.CounterVec
	ItemsTotal         *prometheus.CounterVec
	CacheTotal         *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	OutboxPublished    prometheus.Counter
	OutboxFailed       prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasel_extractions_total",
			Help: "Completed extraction runs by provenance tier.",
		},
		[]string{"tier"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wasel_extraction_duration_seconds",
			Help:    "Wall time of extraction runs by provenance tier.",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"tier"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasel_extraction_failures_total",
			Help: "Failed extraction runs by reason.",
		},
		[]string{"reason"},
	)
	captured := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasel_captured_responses_total",
			Help: "Network responses inspected by the interceptor, by outcome.",
		},
		[]string{"outcome"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasel_items_extracted_total",
			Help: "Normalized cart items returned, by provenance tier.",
		},
		[]string{"tier"},
	)
	cache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasel_result_cache_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
	sessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wasel_browser_sessions_active",
			Help: "Browser sessions currently open.",
		},
	)
	published := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wasel_outbox_published_total",
			Help: "Outbox events published to the stream.",
		},
	)
	failed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wasel_outbox_failed_total",
			Help: "Outbox events that failed to publish.",
		},
	)

	registry.MustRegister(extractions, duration, failures, captured, items, cache, sessions, published, failed)

	return &Metrics{
		Registry:           registry,
		ExtractionsTotal:   extractions,
		ExtractionDuration: duration,
		FailuresTotal:      failures,
		CapturedTotal:      captured,
		ItemsTotal:         items,
		CacheTotal:         cache,
		ActiveSessions:     sessions,
		OutboxPublished:    published,
		OutboxFailed:       failed,
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveExtraction records a finished run and the number of items it returned.
func (m *Metrics) ObserveExtraction(tier string, items int, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(tier).Inc()
	m.ExtractionDuration.WithLabelValues(tier).Observe(d.Seconds())
	m.ItemsTotal.WithLabelValues(tier).Add(float64(items))
}

// IncFailure increments the failure counter for a reason label.
func (m *Metrics) IncFailure(reason string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(reason).Inc()
}

// IncCaptured counts an inspected network response.
func (m *Metrics) IncCaptured(outcome string) {
	if m == nil {
		return
	}
	m.CapturedTotal.WithLabelValues(outcome).Inc()
}

// IncCache counts a result cache lookup as "hit" or "miss".
func (m *Metrics) IncCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// IncOutbox counts a relay publish attempt.
func (m *Metrics) IncOutbox(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.OutboxPublished.Inc()
		return
	}
	m.OutboxFailed.Inc()
}
