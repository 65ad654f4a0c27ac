package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/config"
)

// Stream modes used as metric labels
const (
	ModeSequential = "sequential"
	ModePaginated  = "paginated"
)

type Metrics interface {
	IncStreamsStarted(mode string)
	IncStreamsCompleted(mode string)
	IncStreamsFailed(mode string)
	IncChunksEmitted(mode string)
	AddRowsStreamed(count int)
	IncChunksPersisted()
	IncPersistFailures()
	ObserveFetchDuration(duration time.Duration)
	ObservePersistDuration(duration time.Duration)
	SetPersistQueueLength(length int)
	IncActiveStreams()
	DecActiveStreams()
	SetConnectionStatus(connected bool)
}

// HealthCheck reports readiness of a downstream dependency.
type HealthCheck func(ctx context.Context) error

type Manager struct {
	cfg         *config.MonitoringConfig
	logger      *zap.Logger
	metrics     Metrics
	server      *http.Server
	healthCheck HealthCheck
}

func NewManager(cfg *config.MonitoringConfig, logger *zap.Logger) *Manager {
	var metrics Metrics

	if cfg.Enabled {
		metrics = NewPrometheusMetrics()
	} else {
		metrics = &NoopMetrics{}
	}

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// SetHealthCheck installs the dependency probe used by the health endpoint.
func (m *Manager) SetHealthCheck(check HealthCheck) {
	m.healthCheck = check
}

func (m *Manager) Start() error {
	if !m.cfg.Enabled {
		m.logger.Info("Metrics disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.cfg.MetricsPath, promhttp.Handler())
	mux.HandleFunc(m.cfg.HealthPath, m.healthHandler)

	m.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.cfg.Port),
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server",
			zap.Int("port", m.cfg.Port),
			zap.String("metrics_path", m.cfg.MetricsPath),
			zap.String("health_path", m.cfg.HealthPath))

		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return nil
}

func (m *Manager) Stop() error {
	if m.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Error("Failed to shutdown metrics server", zap.Error(err))
		return err
	}

	m.logger.Info("Metrics server stopped")
	return nil
}

func (m *Manager) GetMetrics() Metrics {
	return m.metrics
}

func (m *Manager) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if m.healthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := m.healthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"degraded","error":%q,"timestamp":"%s"}`,
				err.Error(), time.Now().UTC().Format(time.RFC3339))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

type NoopMetrics struct{}

func (n *NoopMetrics) IncStreamsStarted(mode string)                 {}
func (n *NoopMetrics) IncStreamsCompleted(mode string)               {}
func (n *NoopMetrics) IncStreamsFailed(mode string)                  {}
func (n *NoopMetrics) IncChunksEmitted(mode string)                  {}
func (n *NoopMetrics) AddRowsStreamed(count int)                     {}
func (n *NoopMetrics) IncChunksPersisted()                           {}
func (n *NoopMetrics) IncPersistFailures()                           {}
func (n *NoopMetrics) ObserveFetchDuration(duration time.Duration)   {}
func (n *NoopMetrics) ObservePersistDuration(duration time.Duration) {}
func (n *NoopMetrics) SetPersistQueueLength(length int)              {}
func (n *NoopMetrics) IncActiveStreams()                             {}
func (n *NoopMetrics) DecActiveStreams()                             {}
func (n *NoopMetrics) SetConnectionStatus(connected bool)            {}

var _ Metrics = (*NoopMetrics)(nil)
