package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := NewServer(":0", "/metrics", reg, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SpectraLoaded(1, 10)
	m.SpectraLoaded(2, 4)
	m.SpectraLoaded(2, 0)
	m.ObserveExtraction(3*time.Millisecond, 12)
	m.ObserveExtraction(time.Millisecond, 0)
	m.ObserveMerge(0.25)
	m.CodecBytes("encode", 128)

	body := scrape(t, reg)
	assert.Contains(t, body, `mzkit_spectra_loaded_total{level="1"} 10`)
	assert.Contains(t, body, `mzkit_spectra_loaded_total{level="2"} 4`)
	assert.Contains(t, body, "mzkit_xic_extractions_total 2")
	assert.Contains(t, body, "mzkit_xic_points_count 2")
	assert.Contains(t, body, "mzkit_xic_extraction_duration_seconds_count 2")
	assert.Contains(t, body, "mzkit_merge_reduction_ratio_count 1")
	assert.Contains(t, body, `mzkit_codec_bytes_total{direction="encode"} 128`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SpectraLoaded(1, 1)
		m.ObserveExtraction(time.Second, 1)
		m.ObserveMerge(0.5)
		m.CodecBytes("decode", 1)
	})
}

func TestServerHealth(t *testing.T) {
	srv := NewServer(":0", "/metrics", prometheus.NewRegistry(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
