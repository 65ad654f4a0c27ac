package observability

import (
	"context"
	"time"
)

// NoopErrorReporter drops every event. Used when error reporting is disabled.
type NoopErrorReporter struct{}

func NewNoopErrorReporter() *NoopErrorReporter {
	return &NoopErrorReporter{}
}

func (n *NoopErrorReporter) CaptureError(_ context.Context, _ error, _ *ErrorContext) error {
	return nil
}

func (n *NoopErrorReporter) CaptureMessage(_ context.Context, _ string, _ Severity, _ *ErrorContext) error {
	return nil
}

func (n *NoopErrorReporter) Flush(_ time.Duration) bool {
	return true
}

func (n *NoopErrorReporter) Close() error {
	return nil
}

var _ ErrorReporter = (*NoopErrorReporter)(nil)
