// Package metrics holds the Prometheus instruments reported by mzkit.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mzkit"

// Metrics holds all Prometheus metrics for mzkit. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	SpectraLoadedTotal    *prometheus.CounterVec
	XICExtractionsTotal   prometheus.Counter
	XICExtractionDuration prometheus.Histogram
	XICPoints             prometheus.Histogram
	MergeReductionRatio   prometheus.Histogram
	CodecBytesTotal       *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SpectraLoadedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectra_loaded_total",
			Help:      "Total number of spectra loaded for extraction, by ms level",
		}, []string{"level"}),
		XICExtractionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xic_extractions_total",
			Help:      "Total number of single XIC extractions",
		}),
		XICExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "xic_extraction_duration_seconds",
			Help:      "Histogram of single XIC extraction durations",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
		XICPoints: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "xic_points",
			Help:      "Histogram of points per extracted trace",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		MergeReductionRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_reduction_ratio",
			Help:      "Fraction of peaks removed by a merge",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CodecBytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_bytes_total",
			Help:      "Total encoded bytes produced or consumed by the codec",
		}, []string{"direction"}),
	}
}

// SpectraLoaded counts n spectra of the given level.
func (m *Metrics) SpectraLoaded(level, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SpectraLoadedTotal.WithLabelValues(strconv.Itoa(level)).Add(float64(n))
}

// ObserveExtraction records one extraction and its trace length.
func (m *Metrics) ObserveExtraction(d time.Duration, points int) {
	if m == nil {
		return
	}
	m.XICExtractionsTotal.Inc()
	m.XICExtractionDuration.Observe(d.Seconds())
	m.XICPoints.Observe(float64(points))
}

// ObserveMerge records the reduction ratio of one merge.
func (m *Metrics) ObserveMerge(reduction float64) {
	if m == nil {
		return
	}
	m.MergeReductionRatio.Observe(reduction)
}

// CodecBytes adds n bytes in direction "encode" or "decode".
func (m *Metrics) CodecBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CodecBytesTotal.WithLabelValues(direction).Add(float64(n))
}
