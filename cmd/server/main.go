package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/vwlab/vwharness/internal/api"
	"github.com/vwlab/vwharness/internal/app"
	"github.com/vwlab/vwharness/internal/config"
	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/metrics"
	"github.com/vwlab/vwharness/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	opts := []app.Option{
		app.WithLogger(slog.Default()),
		app.WithMetrics(m),
		app.WithTracer(otel.Tracer("github.com/vwlab/vwharness/dispatch")),
	}

	// Transcript store is optional
	if cfg.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := storage.New(ctx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		slog.Info("connected to database")
		opts = append(opts,
			app.WithObserver(storage.NewTranscriptRepo(store.DB(), slog.Default())),
			app.WithRunRecorder(storage.NewRunRepo(store.DB())),
		)
	}

	harness, err := app.NewHarness(cfg, opts...)
	if err != nil {
		slog.Error("failed to initialize harness", "error", err)
		os.Exit(1)
	}

	// Initialize API server
	server := api.NewServer(cfg, harness, api.WithLogger(slog.Default()), api.WithMetrics(m, reg))

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		slog.Info("server stopped")
	}
}
