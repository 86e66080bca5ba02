package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"worldsentinel/internal/analytics"
	"worldsentinel/internal/config"
	"worldsentinel/internal/infrastructure/feed"
	"worldsentinel/internal/infrastructure/httpapi"
	"worldsentinel/internal/infrastructure/scheduler"
	"worldsentinel/internal/infrastructure/storage"
	"worldsentinel/internal/logging"
	"worldsentinel/internal/usecase"
)

// Application wires config to the store, pipeline, scheduler and HTTP server.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.SQLiteStore
	sched  *usecase.Scheduler
	server *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher := feed.NewHTTPFetcher(cfg.Fetch, baseLogger.With("component", "fetcher"))
	aggregator := analytics.NewAggregator(store, cfg.Detection.Window(), baseLogger.With("component", "indices"))
	detector := analytics.NewDetector(store, cfg.Detection, baseLogger.With("component", "detector"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    fetcher,
		Store:      store,
		Aggregator: aggregator,
		Detector:   detector,
		Sources:    cfg.Sources,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.New(cfg.Scheduler.Every())
	sched := usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler"))

	api := httpapi.New(store, pipeline, cfg, baseLogger.With("component", "httpapi"))
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		store:  store,
		sched:  sched,
		server: server,
	}, nil
}

// Run serves HTTP and runs the scheduler until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.sched.Stop(shutdownCtx)
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close", "error", err)
	}

	return nil
}
