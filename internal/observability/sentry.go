package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/config"
)

// SentryReporter is the Sentry-backed ErrorReporter.
type SentryReporter struct {
	logger *zap.Logger
	hub    *sentry.Hub
}

func NewSentryReporter(cfg *config.SentryConfig, logger *zap.Logger) (*SentryReporter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("Sentry DSN is required")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	return &SentryReporter{
		logger: logger,
		hub:    sentry.CurrentHub(),
	}, nil
}

func (r *SentryReporter) CaptureError(ctx context.Context, err error, errCtx *ErrorContext) error {
	if err == nil {
		return nil
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		applyContext(scope, errCtx)
		r.hub.CaptureException(err)
	})

	return nil
}

func (r *SentryReporter) CaptureMessage(ctx context.Context, msg string, severity Severity, errCtx *ErrorContext) error {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(severity))
		applyContext(scope, errCtx)
		r.hub.CaptureMessage(msg)
	})

	return nil
}

func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

func (r *SentryReporter) Close() error {
	sentry.Flush(2 * time.Second)
	return nil
}

func applyContext(scope *sentry.Scope, errCtx *ErrorContext) {
	if errCtx == nil {
		return
	}

	if errCtx.Component != "" {
		scope.SetTag("component", errCtx.Component)
	}
	if errCtx.Operation != "" {
		scope.SetTag("operation", errCtx.Operation)
	}
	if errCtx.Table != "" {
		scope.SetTag("table", errCtx.Table)
	}
	for k, v := range errCtx.Extra {
		scope.SetExtra(k, v)
	}
}

func sentryLevel(severity Severity) sentry.Level {
	switch severity {
	case SeverityDebug:
		return sentry.LevelDebug
	case SeverityInfo:
		return sentry.LevelInfo
	case SeverityWarning:
		return sentry.LevelWarning
	case SeverityError:
		return sentry.LevelError
	case SeverityFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}

var _ ErrorReporter = (*SentryReporter)(nil)
