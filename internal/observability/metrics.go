package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rain_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	PayloadsConsumed prometheus.Counter
	RowsPublished    prometheus.Counter
	SchemaErrors     prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Medallion run metrics.
	StageDuration  *prometheus.HistogramVec // labels: stage={normalize,hourly,daily,labels,ml_ready,persist}
	TierRows       *prometheus.CounterVec   // labels: tier
	SnapshotWrites *prometheus.CounterVec   // labels: tier, outcome={success,error}
	Predictions    *prometheus.CounterVec   // labels: outcome={success,mismatch}

	// Source API metrics.
	SourceFetches       *prometheus.CounterVec // labels: outcome={success,error}
	SourceFetchDuration prometheus.Histogram
}

type metricOpts struct {
	payloadsConsumed        prometheus.CounterOpts
	rowsPublished           prometheus.CounterOpts
	schemaErrors            prometheus.CounterOpts
	pipelineRunning         prometheus.GaugeOpts
	batchSize               prometheus.HistogramOpts
	batchProcessingDuration prometheus.HistogramOpts
	stageDuration           prometheus.HistogramOpts
	tierRows                prometheus.CounterOpts
	snapshotWrites          prometheus.CounterOpts
	predictions             prometheus.CounterOpts
	sourceFetches           prometheus.CounterOpts
	sourceFetchDuration     prometheus.HistogramOpts
}

func defaultOpts() metricOpts {
	return metricOpts{
		payloadsConsumed: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_consumed_total",
			Help:      "Total raw payloads read from the source.",
		},
		rowsPublished: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Total ml-ready rows written to the sink topic.",
		},
		schemaErrors: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_errors_total",
			Help:      "Total payloads rejected by the normalizer.",
		},
		pipelineRunning: prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		},
		batchSize: prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of payloads per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		},
		batchProcessingDuration: prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		stageDuration: prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each medallion stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		tierRows: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_rows_total",
			Help:      "Rows produced per tier.",
		},
		snapshotWrites: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Tier snapshot writes by tier and outcome.",
		},
		predictions: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Model scoring attempts by outcome.",
		},
		sourceFetches: prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Raw payload requests to the weather API by outcome.",
		},
		sourceFetchDuration: prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Latency of weather API requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	}
}

func newMetrics(o metricOpts) *Metrics {
	return &Metrics{
		PayloadsConsumed:        prometheus.NewCounter(o.payloadsConsumed),
		RowsPublished:           prometheus.NewCounter(o.rowsPublished),
		SchemaErrors:            prometheus.NewCounter(o.schemaErrors),
		PipelineRunning:         prometheus.NewGauge(o.pipelineRunning),
		BatchSize:               prometheus.NewHistogram(o.batchSize),
		BatchProcessingDuration: prometheus.NewHistogram(o.batchProcessingDuration),
		StageDuration:           prometheus.NewHistogramVec(o.stageDuration, []string{"stage"}),
		TierRows:                prometheus.NewCounterVec(o.tierRows, []string{"tier"}),
		SnapshotWrites:          prometheus.NewCounterVec(o.snapshotWrites, []string{"tier", "outcome"}),
		Predictions:             prometheus.NewCounterVec(o.predictions, []string{"outcome"}),
		SourceFetches:           prometheus.NewCounterVec(o.sourceFetches, []string{"outcome"}),
		SourceFetchDuration:     prometheus.NewHistogram(o.sourceFetchDuration),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(defaultOpts())

	prometheus.MustRegister(
		m.PayloadsConsumed,
		m.RowsPublished,
		m.SchemaErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.StageDuration,
		m.TierRows,
		m.SnapshotWrites,
		m.Predictions,
		m.SourceFetches,
		m.SourceFetchDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(defaultOpts())
}
