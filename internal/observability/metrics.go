package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tire_etl"

// Metrics holds the Prometheus collectors for the analysis job.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,partial,failed}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastRunSuccess  prometheus.Gauge

	// Per-file and per-row accounting.
	FilesProcessed   *prometheus.CounterVec // labels: outcome={accepted,malformed,unmappable,no_rows}
	RowsRead         prometheus.Counter
	RowsExcluded     prometheus.Counter
	UnparsableValues *prometheus.CounterVec // labels: field
	Readings         *prometheus.CounterVec // labels: estado

	// Sink metrics.
	SinkErrors   *prometheus.CounterVec   // labels: sink
	SinkDuration *prometheus.HistogramVec // labels: sink
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Analysis runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete analysis run, sinks included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run accepted at least one file, 0 otherwise.",
		}),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input files by acceptance outcome.",
		}, []string{"outcome"}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Data rows read from accepted files.",
		}),
		RowsExcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_excluded_total",
			Help:      "Rows left out of metrics because a pressure value was missing.",
		}),
		UnparsableValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unparsable_values_total",
			Help:      "Present but invalid cell values by canonical field.",
		}, []string{"field"}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Classified pressure readings by estado.",
		}, []string{"estado"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed result deliveries by sink.",
		}, []string{"sink"}),
		SinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_duration_seconds",
			Help:      "Time spent delivering results to each sink.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.LastRunSuccess,
		m.FilesProcessed,
		m.RowsRead,
		m.RowsExcluded,
		m.UnparsableValues,
		m.Readings,
		m.SinkErrors,
		m.SinkDuration,
	}
}
