// Package main is the entry point for the AdPilot ad performance service.
// It watches Meta ad campaigns for the ReadStreak app, aggregates spend
// and behavioral metrics, and pauses ads that burn budget without
// producing streak activations or purchases.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open the tracker database (SQLite) and analytics store (Postgres)
//  4. Wire the Meta client, KPI services and the performance monitor
//  5. Start the backup service (if a bucket is configured)
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/readstreak/adpilot/internal/analytics"
	"github.com/readstreak/adpilot/internal/clients/meta"
	"github.com/readstreak/adpilot/internal/config"
	"github.com/readstreak/adpilot/internal/database"
	"github.com/readstreak/adpilot/internal/modules/kpi"
	kpihandlers "github.com/readstreak/adpilot/internal/modules/kpi/handlers"
	"github.com/readstreak/adpilot/internal/modules/monitor"
	monitorhandlers "github.com/readstreak/adpilot/internal/modules/monitor/handlers"
	"github.com/readstreak/adpilot/internal/reliability"
	"github.com/readstreak/adpilot/internal/server"
	"github.com/readstreak/adpilot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting AdPilot")

	// Tracker database holds campaign enrollments and sweep history.
	trackerDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "tracker.db"),
		Name: "tracker",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open tracker database")
	}
	defer trackerDB.Close()

	tracker, err := monitor.NewTracker(trackerDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize campaign tracker")
	}

	history, err := monitor.NewHistory(trackerDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sweep history")
	}

	audit := monitor.NewAuditLog(filepath.Join(cfg.DataDir, "performance_monitor.log"), log)

	// The analytics store is required: cost-per-activation and retention
	// metrics cannot be computed without per-user install rows.
	analyticsStore, err := analytics.New(cfg.AnalyticsDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to analytics database")
	}
	defer analyticsStore.Close()

	// The Meta client tolerates missing credentials at startup; the
	// connections endpoint reports the failure instead.
	metaClient := meta.NewClient(cfg.MetaAccessToken, cfg.MetaAdAccountID, log)
	defer metaClient.Close()

	// KPI stack: threshold store, aggregation service, account scanner
	// and two executors. The monitor's executor marks its audit entries
	// as automated; the one behind the HTTP API does not.
	thresholds := kpi.NewThresholdStore()
	service := kpi.NewService(metaClient, analyticsStore, thresholds, log)
	scanner := kpi.NewScanner(metaClient, service, log)
	manualExecutor := kpi.NewExecutor(metaClient, analyticsStore, false, log)
	autoExecutor := kpi.NewExecutor(metaClient, analyticsStore, true, log)

	mon := monitor.New(
		metaClient,
		analyticsStore,
		autoExecutor,
		tracker,
		history,
		audit,
		monitor.ThresholdsFromConfig(cfg.SweepThresholds),
		cfg.CheckIntervalHours,
		log,
	)

	if cfg.MonitorAutoStart {
		if err := mon.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start performance monitor")
		}
		log.Info().Int("intervalHours", cfg.CheckIntervalHours).Msg("Performance monitor auto-started")
	}
	defer mon.Stop()

	// Backup service is optional: enabled only when a bucket is configured.
	if cfg.Backup != nil && cfg.Backup.Bucket != "" {
		s3, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create S3 client, backups disabled")
		} else {
			backupSvc := reliability.NewBackupService(s3, trackerDB, audit.Path(), cfg.DataDir, cfg.Backup.Keep, log)
			if err := backupSvc.Start(); err != nil {
				log.Error().Err(err).Msg("Failed to start backup service")
			} else {
				defer backupSvc.Stop()
			}
		}
	}

	srv := server.New(server.Config{
		Log:             log,
		Config:          cfg,
		KPIHandlers:     kpihandlers.NewHandler(service, scanner, manualExecutor, log),
		MonitorHandlers: monitorhandlers.NewHandler(mon, log),
		SystemHandlers:  server.NewSystemHandlers(cfg.DataDir, metaClient, analyticsStore, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	mon.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
