// Package main is the entry point for the dealflow matching service.
// It loads configuration, wires the pipeline, serves the HTTP API and
// shuts everything down in order on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/di"
	"github.com/aristath/dealflow/internal/server"
	"github.com/aristath/dealflow/pkg/logger"
)

// main is the application entry point:
// 1. Loads configuration from the environment (.env supported)
// 2. Initializes logging
// 3. Wires databases, services, work processor and jobs
// 4. Starts background components and the HTTP server
// 5. Waits for a shutdown signal and stops in reverse order
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		Service: "dealflow",
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting dealflow")

	// Loads filter sets, ledger heads and published views from disk before
	// anything starts consuming events.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	container.Start()
	log.Info().Msg("Work processor and scheduler started")

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Startup sweep picks up views that went stale while the process was down.
	if err := container.Work.Processor.Submit(di.WorkSweep, "", nil); err != nil {
		log.Warn().Err(err).Msg("Failed to queue startup sweep")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Error while closing resources")
	}

	log.Info().Msg("Server stopped")
}
