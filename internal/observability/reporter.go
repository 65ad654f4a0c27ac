// Package observability wires error reporting and APM providers behind small
// interfaces so the rest of the service never imports a vendor SDK directly.
package observability

import (
	"context"
	"time"
)

// ErrorReporter ships errors to an external tracker (Sentry in production,
// noop when disabled).
type ErrorReporter interface {
	// CaptureError reports an error with optional context information.
	CaptureError(ctx context.Context, err error, errCtx *ErrorContext) error

	// CaptureMessage reports a message with a severity and optional context.
	CaptureMessage(ctx context.Context, msg string, severity Severity, errCtx *ErrorContext) error

	// Flush waits up to timeout for pending events to be sent. Returns false
	// if the timeout was reached first.
	Flush(timeout time.Duration) bool

	// Close shuts the reporter down.
	Close() error
}

// Severity is the level attached to a captured message.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrorContext carries tags attached to a captured event.
type ErrorContext struct {
	// Component is the part of the service that failed ("source", "stream",
	// "persist", "server").
	Component string

	// Operation is the specific action that failed ("chunk_fetch",
	// "chunk_write", "count").
	Operation string

	// Table is the streamed table, when relevant.
	Table string

	// Extra holds additional key-value pairs.
	Extra map[string]interface{}
}

// NewErrorContext creates an ErrorContext for a component and operation.
func NewErrorContext(component, operation string) *ErrorContext {
	return &ErrorContext{
		Component: component,
		Operation: operation,
		Extra:     make(map[string]interface{}),
	}
}

// WithTable tags the context with the streamed table.
func (ec *ErrorContext) WithTable(table string) *ErrorContext {
	ec.Table = table
	return ec
}

// WithExtra adds one extra key-value pair.
func (ec *ErrorContext) WithExtra(key string, value interface{}) *ErrorContext {
	if ec.Extra == nil {
		ec.Extra = make(map[string]interface{})
	}
	ec.Extra[key] = value
	return ec
}
