// Package monitoring exposes Prometheus metrics for the pipeline.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// thermal-anomaly pipeline.
type Metrics struct {
	ScenesAccepted prometheus.Counter
	ScenesSkipped  *prometheus.CounterVec // labels: reason={outside_range,invalid_fraction}
	RunsStarted    prometheus.Counter
	RunsFailed     prometheus.Counter
	PipelineActive prometheus.Gauge

	StageDuration  *prometheus.HistogramVec // labels: stage
	ElevationBands prometheus.Histogram
	RastersWritten prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ScenesAccepted,
		m.ScenesSkipped,
		m.RunsStarted,
		m.RunsFailed,
		m.PipelineActive,
		m.StageDuration,
		m.ElevationBands,
		m.RastersWritten,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ScenesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "suhi",
			Name:      "scenes_accepted_total",
			Help:      "Scenes that passed quality filtering into the composite.",
		}),
		ScenesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "suhi",
			Name:      "scenes_skipped_total",
			Help:      "Scenes excluded from the composite, by reason.",
		}, []string{"reason"}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "suhi",
			Name:      "runs_started_total",
			Help:      "Pipeline runs started.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "suhi",
			Name:      "runs_failed_total",
			Help:      "Pipeline runs that aborted with an error.",
		}),
		PipelineActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "suhi",
			Name:      "pipeline_active",
			Help:      "1 while a run is executing, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "suhi",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		ElevationBands: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "suhi",
			Name:      "elevation_bands",
			Help:      "Number of elevation bands partitioned per run.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		RastersWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "suhi",
			Name:      "rasters_written_total",
			Help:      "Output rasters written to disk.",
		}),
	}
}
