// Package main is the entry point for the Octave quality scoring and
// capital allocation engine. It scores a configured universe of securities,
// persists the results as immutable runs, and serves them over HTTP.
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

	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/di"
	"github.com/aristath/octave/internal/scheduler"
	"github.com/aristath/octave/internal/server"
	"github.com/aristath/octave/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Str("engine", cfg.DefaultEngine).Msg("Starting Octave")

	// Wire all dependencies using the DI container: databases, repositories,
	// services, and job instances
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.CloseDatabases()

	// Register background jobs. The scheduler is always constructed so jobs
	// can be triggered manually via the API even when cron is disabled.
	sched := scheduler.New(log)
	if err := registerJobs(sched, jobs, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	if cfg.Scheduler.Enabled {
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info().Msg("Scheduler disabled, jobs run on manual trigger only")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		Container: container,
		Scheduler: sched,
		DevMode:   cfg.DevMode,
	})

	// Wire up jobs for manual triggering via API
	srv.SetJobs(jobs)

	// Start server in goroutine
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

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// registerJobs wires the job instances onto their cron schedules. The cloud
// backup job shares the backup schedule with the local snapshot and is only
// present when backup storage is configured.
func registerJobs(sched *scheduler.Scheduler, jobs *di.JobInstances, cfg *config.Config) error {
	if err := sched.AddJob(cfg.Scheduler.RebalanceSchedule, jobs.Rebalance); err != nil {
		return fmt.Errorf("failed to register rebalance job: %w", err)
	}

	if err := sched.AddJob(cfg.Scheduler.CacheCleanupSchedule, jobs.CacheCleanup); err != nil {
		return fmt.Errorf("failed to register cache_cleanup job: %w", err)
	}

	if err := sched.AddJob(cfg.Scheduler.BackupSchedule, jobs.Snapshot); err != nil {
		return fmt.Errorf("failed to register snapshot job: %w", err)
	}

	if jobs.CloudBackup != nil {
		if err := sched.AddJob(cfg.Scheduler.BackupSchedule, jobs.CloudBackup); err != nil {
			return fmt.Errorf("failed to register cloud_backup job: %w", err)
		}
	}

	return nil
}
