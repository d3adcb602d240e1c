// Package main provides the HTTP server for CareerPulse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/config"
	"github.com/raphaelgruber/careerpulse/internal/db"
	"github.com/raphaelgruber/careerpulse/internal/insight"
	"github.com/raphaelgruber/careerpulse/internal/llm"
	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/pipeline"
	"github.com/raphaelgruber/careerpulse/internal/server"
	"github.com/raphaelgruber/careerpulse/internal/service"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all profiles on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Dual output: stderr text + file JSON
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	logger.Info("starting careerpulse-server",
		"version", version,
		"port", cfg.ServerPort,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"surrealdb_url", cfg.SurrealDBURL,
	)

	if err := run(cfg, logger, *wipeDB || os.Getenv("CAREERPULSE_WIPE_DB") == "true"); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, wipe bool) error {
	mc := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	model, err := llm.NewModel(ctx, cfg, mc)
	if err != nil {
		cancel()
		return fmt.Errorf("init model: %w", err)
	}

	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, mc)
	if err != nil {
		cancel()
		return fmt.Errorf("connect to profile store: %w", err)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close profile store", "error", err)
		}
	}()

	if err := dbClient.InitSchema(ctx); err != nil {
		cancel()
		return fmt.Errorf("initialize schema: %w", err)
	}
	if wipe {
		if err := dbClient.WipeData(ctx); err != nil {
			cancel()
			return fmt.Errorf("wipe profile store: %w", err)
		}
		logger.Warn("profile store wiped")
	}
	cancel()

	emitter := pipeline.NewEmitter(insight.NewGenerator(model), pipeline.Options{
		Steps: cfg.ProgressSteps,
		Pacing: pipeline.Pacing{
			StepDelay:    cfg.StepDelay,
			InsightDelay: cfg.InsightDelay,
		},
		UpstreamTimeout: cfg.UpstreamTimeout,
		Logger:          logger,
		Metrics:         mc,
	})

	srv := server.New(server.Deps{
		Emitter:   emitter,
		Profiles:  service.NewProfileService(dbClient, mc),
		Metrics:   mc,
		Store:     dbClient,
		Heartbeat: cfg.HeartbeatInterval,
		Logger:    logger,
	})

	// Event streams clear their own write deadline.
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("insight stream available", "url", fmt.Sprintf("http://localhost:%s/insights/stream/{topic}", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server...", "signal", sig)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
