// Package main runs a single feed refresh and prints its summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"prediction-feed/internal/app"
	"prediction-feed/internal/config"
)

func main() {
	cfg := config.Load()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", cfg.Infra.PostgresDSN, "PostgreSQL connection string")
	sqlitePath := flag.String("sqlite-path", cfg.Infra.SQLitePath, "SQLite database file (used when no PostgreSQL DSN is set)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Infra.ClickhouseDSN, "ClickHouse DSN for the refresh telemetry mirror")
	redisURL := flag.String("redis-url", cfg.Infra.RedisURL, "Redis URL for the refresh lease")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")
	maxPages := flag.Int("max-pages", cfg.Fetch.MaxPages, "Maximum listing pages to fetch")
	llm := flag.Bool("llm", cfg.LLM.Enabled, "Enable LLM classification")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	cfg.Infra.PostgresDSN = *postgresDSN
	cfg.Infra.SQLitePath = *sqlitePath
	cfg.Infra.ClickhouseDSN = *clickhouseDSN
	cfg.Infra.RedisURL = *redisURL
	if *maxPages > 0 {
		cfg.Fetch.MaxPages = *maxPages
	}
	cfg.LLM.Enabled = *llm

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so stdout carries only the summary.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("service", "refresh")
	slog.SetDefault(logger)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, cancelling refresh", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, *useMemory, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Refresh error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, useMemory bool, logger *slog.Logger) error {
	a, cleanup, err := app.Build(ctx, app.Options{
		Config:    cfg,
		UseMemory: useMemory,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := a.Orchestrator.Refresh(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
