// Package server exposes the streaming HTTP API: full-table chunked streams,
// single-page streams and a row count endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/config"
	"github.com/jfperron/bulkstream/internal/observability"
	"github.com/jfperron/bulkstream/internal/source"
	"github.com/jfperron/bulkstream/internal/stream"
)

// Server is the public HTTP front end. It owns the listener lifecycle; the
// actual chunk production is delegated to the stream emitter.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	src      source.RowSource
	emitter  *stream.Emitter
	reporter observability.ErrorReporter
	apmApp   *newrelic.Application
	server   *http.Server
	mu       sync.Mutex
	running  bool
}

func New(cfg *config.Config, src source.RowSource, emitter *stream.Emitter, reporter observability.ErrorReporter, apmApp *newrelic.Application, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		src:      src,
		emitter:  emitter,
		reporter: reporter,
		apmApp:   apmApp,
	}
}

// Handler builds the route table. Handlers are wrapped for APM when an agent
// is configured; a nil application leaves them uninstrumented.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(newrelic.WrapHandleFunc(s.apmApp, "/bulk-data", s.handleBulkData))
	mux.HandleFunc(newrelic.WrapHandleFunc(s.apmApp, "/bulk-data-paginated", s.handleBulkDataPaginated))
	mux.HandleFunc(newrelic.WrapHandleFunc(s.apmApp, "/count-records", s.handleCountRecords))
	return mux
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}

	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.running = true
	return nil
}

// Stop shuts the listener down gracefully, letting in-flight streams drain
// within the configured shutdown timeout.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
