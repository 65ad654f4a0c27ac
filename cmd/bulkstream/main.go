package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/common"
	"github.com/jfperron/bulkstream/internal/config"
	"github.com/jfperron/bulkstream/internal/metrics"
	"github.com/jfperron/bulkstream/internal/observability"
	"github.com/jfperron/bulkstream/internal/persist"
	"github.com/jfperron/bulkstream/internal/server"
	"github.com/jfperron/bulkstream/internal/source"
	"github.com/jfperron/bulkstream/internal/stream"
)

type Application struct {
	cfg                  *config.Config
	logger               *zap.Logger
	src                  *source.SQLSource
	persister            *persist.Persister
	httpServer           *server.Server
	metricsManager       *metrics.Manager
	observabilityManager *observability.Manager
	running              bool
	mu                   sync.RWMutex
}

func main() {
	var (
		configPath = flag.String("config", "configs/example.yaml", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Bulkstream %s\n", common.GetVersion())
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := common.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	observabilityManager, err := observability.NewManager(
		&cfg.Observability,
		common.LoggerWithComponent(logger, "observability"),
	)
	if err != nil {
		return fmt.Errorf("failed to create observability manager: %w", err)
	}

	app := &Application{
		cfg:                  cfg,
		logger:               logger,
		observabilityManager: observabilityManager,
	}

	if err := app.initialize(); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.logger.Info("Bulkstream started successfully",
		zap.String("version", common.GetVersion()),
		zap.String("table", cfg.Database.Table))

	app.waitForShutdown()

	cancel()
	app.logger.Info("Context cancelled, waiting for components to stop...")

	if err := app.stop(); err != nil {
		app.logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	app.logger.Info("Bulkstream stopped gracefully")
	return nil
}

func (a *Application) initialize() error {
	a.logger.Info("Initializing components...")

	metricsManager := metrics.NewManager(&a.cfg.Monitoring, common.LoggerWithComponent(a.logger, "metrics"))
	a.metricsManager = metricsManager

	src, err := source.NewSQLSource(&a.cfg.Database, common.LoggerWithComponent(a.logger, "source"))
	if err != nil {
		return fmt.Errorf("failed to create row source: %w", err)
	}
	a.src = src

	a.metricsManager.SetHealthCheck(src.Ping)

	persister := persist.NewPersister(
		&a.cfg.Persist,
		a.metricsManager.GetMetrics(),
		a.observabilityManager.GetErrorReporter(),
		common.LoggerWithComponent(a.logger, "persist"),
	)
	a.persister = persister

	emitter := stream.NewEmitter(
		persister,
		a.metricsManager.GetMetrics(),
		a.observabilityManager.GetErrorReporter(),
		common.LoggerWithComponent(a.logger, "stream"),
	)

	a.httpServer = server.New(
		a.cfg,
		src,
		emitter,
		a.observabilityManager.GetErrorReporter(),
		a.observabilityManager.GetAPMApplication(),
		common.LoggerWithComponent(a.logger, "server"),
	)

	a.logger.Info("Components initialized successfully")
	return nil
}

func (a *Application) start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("application is already running")
	}

	a.logger.Info("Starting components...")

	if err := a.metricsManager.Start(); err != nil {
		return fmt.Errorf("failed to start metrics manager: %w", err)
	}

	// A dead store at boot is a configuration problem; surface it now rather
	// than on the first request.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.src.Ping(pingCtx); err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}
	a.metricsManager.GetMetrics().SetConnectionStatus(true)

	if err := a.persister.Start(); err != nil {
		return fmt.Errorf("failed to start persister: %w", err)
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	go a.runMetricsUpdater(ctx)

	a.running = true
	return nil
}

func (a *Application) stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.logger.Info("Stopping components...")

	var errs []error

	// Stop the listener first so no new streams arrive, then drain queued
	// chunk writes before closing the database.
	if err := a.httpServer.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server stop error: %w", err))
	}

	if err := a.persister.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("persister stop error: %w", err))
	}

	if err := a.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("row source close error: %w", err))
	}

	if err := a.metricsManager.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("metrics manager stop error: %w", err))
	}

	// Stop observability manager last to capture any shutdown errors
	if a.observabilityManager != nil {
		if err := a.observabilityManager.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("observability manager stop error: %w", err))
		}
	}

	a.running = false

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	return nil
}

func (a *Application) runMetricsUpdater(ctx context.Context) {
	a.logger.Info("Starting metrics updater")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Metrics updater stopped")
			return
		case <-ticker.C:
			a.updateConnectionStatus()
			a.metricsManager.GetMetrics().SetPersistQueueLength(a.persister.QueueLength())
		}
	}
}

func (a *Application) updateConnectionStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connected := true
	if err := a.src.Ping(ctx); err != nil {
		connected = false
		a.logger.Warn("Database ping failed", zap.Error(err))
	}
	a.metricsManager.GetMetrics().SetConnectionStatus(connected)
}

func (a *Application) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
}
