package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	streamsStarted     *prometheus.CounterVec
	streamsCompleted   *prometheus.CounterVec
	streamsFailed      *prometheus.CounterVec
	chunksEmitted      *prometheus.CounterVec
	rowsStreamed       prometheus.Counter
	chunksPersisted    prometheus.Counter
	persistFailures    prometheus.Counter
	fetchDuration      prometheus.Histogram
	persistDuration    prometheus.Histogram
	persistQueueLength prometheus.Gauge
	activeStreams      prometheus.Gauge
	connectionStatus   prometheus.Gauge
}

func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		streamsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkstream_streams_started_total",
			Help: "Total number of chunk streams started",
		}, []string{"mode"}),
		streamsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkstream_streams_completed_total",
			Help: "Total number of chunk streams drained to completion",
		}, []string{"mode"}),
		streamsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkstream_streams_failed_total",
			Help: "Total number of chunk streams ended by an error",
		}, []string{"mode"}),
		chunksEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkstream_chunks_emitted_total",
			Help: "Total number of chunks written to response streams",
		}, []string{"mode"}),
		rowsStreamed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bulkstream_rows_streamed_total",
			Help: "Total number of rows sent to clients",
		}),
		chunksPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bulkstream_chunks_persisted_total",
			Help: "Total number of chunk files written to disk",
		}),
		persistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bulkstream_persist_failures_total",
			Help: "Total number of chunk file writes that failed or were abandoned",
		}),
		fetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulkstream_fetch_duration_seconds",
			Help:    "Duration of row source fetches in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		persistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulkstream_persist_duration_seconds",
			Help:    "Duration of chunk file writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		persistQueueLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bulkstream_persist_queue_length",
			Help: "Current number of chunks waiting for a persist worker",
		}),
		activeStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bulkstream_active_streams",
			Help: "Number of response streams currently in flight",
		}),
		connectionStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bulkstream_database_connection_status",
			Help: "Database connection status (1 = connected, 0 = disconnected)",
		}),
	}
}

func (m *PrometheusMetrics) IncStreamsStarted(mode string) {
	m.streamsStarted.WithLabelValues(mode).Inc()
}

func (m *PrometheusMetrics) IncStreamsCompleted(mode string) {
	m.streamsCompleted.WithLabelValues(mode).Inc()
}

func (m *PrometheusMetrics) IncStreamsFailed(mode string) {
	m.streamsFailed.WithLabelValues(mode).Inc()
}

func (m *PrometheusMetrics) IncChunksEmitted(mode string) {
	m.chunksEmitted.WithLabelValues(mode).Inc()
}

func (m *PrometheusMetrics) AddRowsStreamed(count int) {
	m.rowsStreamed.Add(float64(count))
}

func (m *PrometheusMetrics) IncChunksPersisted() {
	m.chunksPersisted.Inc()
}

func (m *PrometheusMetrics) IncPersistFailures() {
	m.persistFailures.Inc()
}

func (m *PrometheusMetrics) ObserveFetchDuration(duration time.Duration) {
	m.fetchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObservePersistDuration(duration time.Duration) {
	m.persistDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetPersistQueueLength(length int) {
	m.persistQueueLength.Set(float64(length))
}

func (m *PrometheusMetrics) IncActiveStreams() {
	m.activeStreams.Inc()
}

func (m *PrometheusMetrics) DecActiveStreams() {
	m.activeStreams.Dec()
}

func (m *PrometheusMetrics) SetConnectionStatus(connected bool) {
	status := 0.0
	if connected {
		status = 1.0
	}
	m.connectionStatus.Set(status)
}

var _ Metrics = (*PrometheusMetrics)(nil)
