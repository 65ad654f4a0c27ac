package observability

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/common"
	"github.com/jfperron/bulkstream/internal/config"
)

// Manager selects and owns the configured observability providers.
type Manager struct {
	cfg           *config.ObservabilityConfig
	logger        *zap.Logger
	errorReporter ErrorReporter
	apmApp        *newrelic.Application
}

func NewManager(cfg *config.ObservabilityConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		cfg:    cfg,
		logger: logger,
	}

	if err := m.initErrorReporter(); err != nil {
		return nil, fmt.Errorf("failed to initialize error reporter: %w", err)
	}

	if err := m.initAPM(); err != nil {
		if m.errorReporter != nil {
			m.errorReporter.Close()
		}
		return nil, fmt.Errorf("failed to initialize APM: %w", err)
	}

	return m, nil
}

func (m *Manager) initErrorReporter() error {
	if !m.cfg.ErrorReporting.Enabled {
		m.logger.Info("Error reporting disabled, using noop reporter")
		m.errorReporter = NewNoopErrorReporter()
		return nil
	}

	switch m.cfg.ErrorReporting.Provider {
	case "sentry":
		reporter, err := NewSentryReporter(&m.cfg.ErrorReporting.Sentry, m.logger)
		if err != nil {
			return fmt.Errorf("failed to create Sentry reporter: %w", err)
		}
		m.errorReporter = reporter
		m.logger.Info("Sentry error reporter initialized",
			zap.String("environment", m.cfg.ErrorReporting.Sentry.Environment))

	case "noop", "":
		m.errorReporter = NewNoopErrorReporter()
		m.logger.Info("Using noop error reporter")

	default:
		return fmt.Errorf("unknown error reporting provider: %s", m.cfg.ErrorReporting.Provider)
	}

	return nil
}

func (m *Manager) initAPM() error {
	if !m.cfg.APM.Enabled {
		m.logger.Info("APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(m.cfg.APM.AppName),
		newrelic.ConfigLicense(m.cfg.APM.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		func(nrCfg *newrelic.Config) {
			nrCfg.Labels = map[string]string{"version": common.GetVersion()}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create NewRelic application: %w", err)
	}

	m.apmApp = app
	m.logger.Info("NewRelic APM initialized",
		zap.String("app_name", m.cfg.APM.AppName))
	return nil
}

// GetErrorReporter returns the configured error reporter.
func (m *Manager) GetErrorReporter() ErrorReporter {
	return m.errorReporter
}

// GetAPMApplication returns the NewRelic application, or nil when APM is
// disabled. A nil application leaves wrapped handlers uninstrumented.
func (m *Manager) GetAPMApplication() *newrelic.Application {
	return m.apmApp
}

// Stop flushes and shuts down all providers.
func (m *Manager) Stop() error {
	var errs []error

	if m.errorReporter != nil {
		flushTimeout := 5 * time.Second
		if m.cfg.ErrorReporting.Sentry.FlushTimeout > 0 {
			flushTimeout = m.cfg.ErrorReporting.Sentry.FlushTimeout
		}
		if !m.errorReporter.Flush(flushTimeout) {
			m.logger.Warn("Error reporter flush timed out")
		}
		if err := m.errorReporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error reporter close error: %w", err))
		}
	}

	if m.apmApp != nil {
		m.apmApp.Shutdown(10 * time.Second)
	}

	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown errors: %v", errs)
	}

	m.logger.Info("Observability manager stopped")
	return nil
}
