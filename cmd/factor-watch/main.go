// Command factor-watch runs the scheduled currency sweep: it flags live
// emission factors that have expired or aged out, re-runs QA/QC per
// organization and exposes the results as Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ghg-ledger/inventory-engine/internal/config"
	"ghg-ledger/inventory-engine/internal/observability"
	"ghg-ledger/inventory-engine/internal/qaqc"
	"ghg-ledger/inventory-engine/internal/store"
)

// Watcher owns the cron schedule and the sweep logic.
type Watcher struct {
	repo    store.Repository
	metrics *observability.Metrics
	logger  *zap.Logger
	cron    *cron.Cron
	done    chan struct{}
}

// NewWatcher creates a watcher with a seconds-granularity cron scheduler.
func NewWatcher(repo store.Repository, metrics *observability.Metrics, logger *zap.Logger) *Watcher {
	return &Watcher{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
		done:    make(chan struct{}),
	}
}

// Start registers the sweep on the given schedule, runs one sweep
// immediately so the gauges are populated before the first tick, and blocks
// until the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context, schedule string) error {
	if _, err := w.cron.AddFunc(schedule, func() { w.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", schedule, err)
	}

	w.logger.Info("Starting factor watch", zap.String("schedule", schedule))

	w.sweep(ctx)
	w.cron.Start()

	select {
	case <-ctx.Done():
		w.logger.Info("Factor watch shutting down")
	case <-w.done:
		w.logger.Info("Factor watch stopped")
	}

	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

func (w *Watcher) sweep(ctx context.Context) {
	start := time.Now()
	stale := w.sweepFactors(ctx)
	w.sweepOrganizations(ctx)
	w.logger.Info("Sweep finished",
		zap.Int("stale_factors", stale),
		zap.Duration("duration", time.Since(start)))
}

// sweepFactors applies the currency rule to every live factor row and logs
// each offender with the reason it was flagged.
func (w *Watcher) sweepFactors(ctx context.Context) int {
	rows, err := w.repo.ListFactors(ctx)
	if err != nil {
		w.logger.Error("Failed to list factors", zap.Error(err))
		return 0
	}

	now := time.Now().UTC()
	stale := 0
	for _, factor := range rows {
		reason, isStale := qaqc.StaleFactor(factor, now)
		if !isStale {
			continue
		}
		stale++
		w.logger.Warn("Stale emission factor",
			zap.String("activity_code", factor.ActivityCode),
			zap.String("gas", factor.Gas),
			zap.String("authority", factor.SourceAuthority),
			zap.String("reason", reason))
	}

	w.metrics.StaleFactors(stale)
	return stale
}

// sweepOrganizations re-runs the QA/QC checks per organization and rolls the
// issue counts into the shared gauges.
func (w *Watcher) sweepOrganizations(ctx context.Context) {
	orgs, err := w.repo.ListOrganizations(ctx)
	if err != nil {
		w.logger.Error("Failed to list organizations", zap.Error(err))
		return
	}

	runner := qaqc.NewRunner(w.repo, w.logger)
	var errorCount, warningCount, infoCount int
	for _, org := range orgs {
		if ctx.Err() != nil {
			return
		}
		report, err := runner.Run(ctx, org.ID)
		if err != nil {
			w.logger.Error("QA/QC run failed",
				zap.String("organization_id", org.ID.String()),
				zap.Error(err))
			continue
		}
		errorCount += report.Summary.Errors
		warningCount += report.Summary.Warnings
		infoCount += report.Summary.Info
		if !report.Passed {
			w.logger.Warn("Organization failed QA/QC",
				zap.String("organization", org.Name),
				zap.Int("errors", report.Summary.Errors))
		}
	}

	w.metrics.QAQCIssues(errorCount, warningCount, infoCount)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	_ = godotenv.Load()

	configPath := os.Getenv("GHG_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := store.Open(cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database handle", zap.Error(err))
	}
	if err := sqlDB.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	defer sqlDB.Close()

	logger.Info("Connected to database")

	metrics := observability.NewMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	go func() {
		logger.Info("Metrics listening", zap.String("addr", cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	watcher := NewWatcher(store.NewRepository(db), metrics, logger)

	logger.Info("Factor watch starting")
	if err := watcher.Start(ctx, cfg.Worker.Schedule); err != nil {
		logger.Fatal("Watcher error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	logger.Info("Factor watch stopped")
}
