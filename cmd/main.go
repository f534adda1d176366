package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"github.com/okian/tally/internal/adapters/audit"
	"github.com/okian/tally/internal/adapters/google"
	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	"github.com/okian/tally/internal/adapters/memory"
	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	maxStandingsLimit      = 1000
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "tally exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.InitWith(cfg.LogFormat, os.Stdout); err != nil {
		return err
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts, closeAll, err := serviceOptions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	svc := service.New(append(opts, service.WithLogger(log.Named("service")))...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers the API and its documentation.
func newMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, maxStandingsLimit).Register(mux)
	return mux
}

// serviceOptions builds the collaborators cfg selects. The returned func
// releases whatever they opened.
func serviceOptions(ctx context.Context, cfg *config.Config) ([]service.Option, func(), error) {
	opts := []service.Option{
		service.WithSettingsStore(repository.NewFileStore(cfg.SettingsPath)),
		service.WithMappingKey(cfg.MappingKey),
		service.WithPublishing(cfg.PublishEnabled),
		service.WithOperationTimeout(cfg.OperationTimeout()),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithCommandPolling(cfg.PollCommands),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
	}

	switch cfg.Backend {
	case config.BackendGoogle:
		sheets, err := google.NewSheets(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
		if err != nil {
			return nil, nil, err
		}
		forms, err := google.NewForms(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts,
			service.WithSpreadsheet(sheets),
			service.WithTabularSource(sheets),
			service.WithFormSource(forms),
		)
	default:
		sheet := memory.NewSpreadsheet()
		opts = append(opts,
			service.WithSpreadsheet(sheet),
			service.WithTabularSource(sheet),
			service.WithFormSource(memory.NewForms()),
		)
	}

	sinks, closeSinks, err := auditSinks(cfg)
	if err != nil {
		return nil, nil, err
	}
	if sinks != nil {
		opts = append(opts, service.WithAuditSinks(sinks))
	}
	return opts, closeSinks, nil
}

// auditSinks returns nil for the sheet backend so each ledger writes to its
// own spreadsheet.
func auditSinks(cfg *config.Config) (service.SinkFactory, func(), error) {
	switch cfg.AuditBackend {
	case config.AuditSQLite:
		store, err := audit.OpenSQLite(cfg.AuditDBPath)
		if err != nil {
			return nil, nil, err
		}
		factory := func(s model.Settings) audit.Sink { return store.Sink(strconv.Itoa(s.ID)) }
		return factory, func() { _ = store.Close() }, nil
	case config.AuditMemory:
		factory := func(model.Settings) audit.Sink { return audit.NewMemorySink() }
		return factory, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// startServiceMetricsUpdater refreshes queue and worker gauges from the service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if ledgers, ok := stats["ledgers"].(int); ok {
		metrics.UpdateLedgerCount(ledgers)
	}
}
