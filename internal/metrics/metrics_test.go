package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction("network", 3, time.Second)
		m.IncFailure("navigation")
		m.IncCaptured("accepted")
		m.IncCache("hit")
		m.SessionOpened()
		m.SessionClosed()
		m.IncOutbox(true)
	})
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCountersAreExposed(t *testing.T) {
	m := New()

	m.ObserveExtraction("dom", 4, 2*time.Second)
	m.ObserveExtraction("dom", 1, time.Second)
	m.IncCaptured("decoy")
	m.IncFailure("launch")
	m.IncOutbox(false)

	body := scrape(t, m)
	assert.Contains(t, body, `wasel_extractions_total{tier="dom"} 2`)
	assert.Contains(t, body, `wasel_items_extracted_total{tier="dom"} 5`)
	assert.Contains(t, body, `wasel_captured_responses_total{outcome="decoy"} 1`)
	assert.Contains(t, body, `wasel_extraction_failures_total{reason="launch"} 1`)
	assert.Contains(t, body, `wasel_outbox_failed_total 1`)
}

func TestNilHandler(t *testing.T) {
	var m *Metrics
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
