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

	"hero-mint-service/config"
	"hero-mint-service/internal/bootstrap"
	"hero-mint-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("HMS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Hero Mint Service")

	ctx := context.Background()

	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{
		OpenAPISpecPath: "docs/api/openapi.yaml",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer app.Close() //nolint:errcheck

	// Scheduled ledger reconciliation
	cron := app.NewCron()
	if cron != nil {
		if err := cron.Start(cfg.Reconcile.Schedule); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Reconcile.Schedule).Msg("Invalid reconcile schedule")
		}
	}

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Mints in flight hold a database transaction open until the generator
	// answers, so allow the generator timeout to elapse.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Generator.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if cron != nil {
		cron.Stop(shutdownCtx)
	}

	log.Info().Msg("Server exited")
}
