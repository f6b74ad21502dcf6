// Package main runs the feed service: a scheduled refresh of the curated
// snapshot plus a small HTTP surface for health, metrics, status and manual
// refreshes.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"prediction-feed/internal/app"
	"prediction-feed/internal/config"
	"prediction-feed/internal/observability"
)

func main() {
	cfg := config.Load()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", cfg.Infra.PostgresDSN, "PostgreSQL connection string")
	sqlitePath := flag.String("sqlite-path", cfg.Infra.SQLitePath, "SQLite database file (used when no PostgreSQL DSN is set)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Infra.ClickhouseDSN, "ClickHouse DSN for the refresh telemetry mirror")
	redisURL := flag.String("redis-url", cfg.Infra.RedisURL, "Redis URL for the refresh lease")
	addr := flag.String("addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	interval := flag.Duration("interval", cfg.Infra.RefreshInterval, "Refresh interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")
	flag.Parse()

	cfg.Infra.PostgresDSN = *postgresDSN
	cfg.Infra.SQLitePath = *sqlitePath
	cfg.Infra.ClickhouseDSN = *clickhouseDSN
	cfg.Infra.RedisURL = *redisURL
	if *interval > 0 {
		cfg.Infra.RefreshInterval = *interval
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "server")
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())

	a, cleanup, err := app.Build(ctx, app.Options{
		Config:     cfg,
		UseMemory:  *useMemory,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to build refresh pipeline", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := &Server{
		refresher:  a.Orchestrator,
		interval:   cfg.Infra.RefreshInterval,
		adminToken: cfg.Infra.AdminToken,
		backend:    a.Backend,
		metrics:    observability.Handler(),
		logger:     logger,
		startedAt:  time.Now(),
		baseCtx:    ctx,
	}
	if server.adminToken == "" {
		logger.Warn("COASENSUS_ADMIN_REFRESH_TOKEN not set, POST /admin/refresh is disabled")
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	httpDone := make(chan struct{})
	go func() {
		defer close(httpDone)
		if err := server.serveHTTP(ctx, *addr); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	err = server.Run(ctx)
	cancel()
	<-httpDone
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		cleanup()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
