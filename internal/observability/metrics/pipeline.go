package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the analysis pipeline
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Stream metrics
	framesTotal   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	streamErrors  *prometheus.CounterVec
	streamAlive   *prometheus.GaugeVec

	// Capture metrics
	blockSize        prometheus.Gauge
	backlog          prometheus.Gauge
	blockSizeChanges *prometheus.CounterVec
	droppedSamples   *prometheus.GaugeVec

	// Data store metrics
	catchupTotal prometheus.Gauge
	rewoundTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechscope_pipeline_frames_total",
			Help: "Total number of analysis frames written per stream",
		},
		[]string{"stream"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speechscope_pipeline_stage_duration_seconds",
			Help:    "Time taken to analyse one frame per stream",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
		[]string{"stream"},
	)

	m.streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechscope_pipeline_stream_errors_total",
			Help: "Total number of fatal stream errors by category",
		},
		[]string{"stream", "category"},
	)

	m.streamAlive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speechscope_pipeline_stream_alive",
			Help: "Whether the stream worker is alive (1) or dead (0)",
		},
		[]string{"stream"},
	)

	m.blockSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "speechscope_pipeline_block_size_samples",
			Help: "Current capture block size in samples",
		},
	)

	m.backlog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "speechscope_pipeline_backlog_samples",
			Help: "Capture samples waiting to be analysed",
		},
	)

	m.blockSizeChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechscope_pipeline_block_size_changes_total",
			Help: "Total number of block size controller steps",
		},
		[]string{"direction"},
	)

	m.droppedSamples = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speechscope_buffer_dropped_samples",
			Help: "Samples dropped on buffer overflow since start",
		},
		[]string{"buffer"},
	)

	m.catchupTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "speechscope_datastore_catchup_total",
			Help: "Reads that observed an unchanged current time",
		},
	)

	m.rewoundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechscope_datastore_rewound_entries_total",
			Help: "Track entries overwritten because a stream's timestamps moved backwards",
		},
		[]string{"stream"},
	)

	m.collectors = []prometheus.Collector{
		m.framesTotal, m.stageDuration, m.streamErrors, m.streamAlive,
		m.blockSize, m.backlog, m.blockSizeChanges, m.droppedSamples,
		m.catchupTotal, m.rewoundTotal,
	}
}

// Describe implements the prometheus.Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordFrame counts one analysed frame
func (m *PipelineMetrics) RecordFrame(stream string) {
	m.framesTotal.WithLabelValues(stream).Inc()
}

// RecordStageDuration records the duration of one frame's analysis
func (m *PipelineMetrics) RecordStageDuration(stream string, seconds float64) {
	m.stageDuration.WithLabelValues(stream).Observe(seconds)
}

// RecordStreamError counts a fatal stream error
func (m *PipelineMetrics) RecordStreamError(stream, category string) {
	m.streamErrors.WithLabelValues(stream, category).Inc()
}

// SetStreamAlive updates the liveness gauge of a stream
func (m *PipelineMetrics) SetStreamAlive(stream string, alive bool) {
	v := 0.0
	if alive {
		v = 1
	}
	m.streamAlive.WithLabelValues(stream).Set(v)
}

// SetBlockSize updates the block size gauge
func (m *PipelineMetrics) SetBlockSize(samples int) {
	m.blockSize.Set(float64(samples))
}

// SetBacklog updates the backlog gauge
func (m *PipelineMetrics) SetBacklog(samples int) {
	m.backlog.Set(float64(samples))
}

// RecordBlockSizeChange counts a controller step
func (m *PipelineMetrics) RecordBlockSizeChange(direction string) {
	m.blockSizeChanges.WithLabelValues(direction).Inc()
}

// SetDroppedSamples updates the overflow total of a buffer
func (m *PipelineMetrics) SetDroppedSamples(buffer string, total uint64) {
	m.droppedSamples.WithLabelValues(buffer).Set(float64(total))
}

// SetCatchupCount updates the data store catch-up gauge
func (m *PipelineMetrics) SetCatchupCount(total uint64) {
	m.catchupTotal.Set(float64(total))
}

// RecordRewind counts overwritten track entries
func (m *PipelineMetrics) RecordRewind(stream string, entries uint64) {
	m.rewoundTotal.WithLabelValues(stream).Add(float64(entries))
}
