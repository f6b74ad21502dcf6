// Package app wires configuration into a ready-to-run refresh orchestrator.
// Both the long-running server and the one-shot refresh command build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"prediction-feed/internal/config"
	"prediction-feed/internal/dedup"
	"prediction-feed/internal/lease"
	"prediction-feed/internal/observability"
	"prediction-feed/internal/orchestrator"
	"prediction-feed/internal/polymarket"
	"prediction-feed/internal/scoring"
	"prediction-feed/internal/semantic"
	"prediction-feed/internal/storage"
	chstore "prediction-feed/internal/storage/clickhouse"
	"prediction-feed/internal/storage/memory"
	"prediction-feed/internal/storage/migrations"
	pgstore "prediction-feed/internal/storage/postgres"
	sqlitestore "prediction-feed/internal/storage/sqlite"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// llmRetries is the per-call retry budget handed to the provider SDKs.
const llmRetries = 1

// Options for Build.
type Options struct {
	Config    config.Config
	UseMemory bool // ignore configured databases

	// Registerer receives the refresh metrics. nil skips metrics.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// App is a wired refresh pipeline.
type App struct {
	Config       config.Config
	Backend      string
	Orchestrator *orchestrator.Orchestrator
	Snapshots    storage.FeedSnapshotStore
	Runs         storage.RunStore
	Metrics      *observability.Metrics
}

// Stores holds the durable stores of one backend.
type Stores struct {
	Backend   string
	Snapshots storage.FeedSnapshotStore
	Cache     storage.SemanticCacheStore
	Failover  storage.FailoverStateStore
	Runs      storage.RunStore
}

// Build creates stores, the lease, optional firehose and telemetry, and the
// orchestrator. The returned cleanup releases every opened resource.
func Build(ctx context.Context, opts Options) (*App, func(), error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stores, closeStores, err := CreateStores(ctx, cfg.Infra, opts.UseMemory)
	if err != nil {
		return nil, nil, err
	}
	cleanups := []func(){closeStores}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	logger.Info("storage ready", "backend", stores.Backend)

	var locker lease.Locker = lease.NewMemoryLocker()
	if cfg.Infra.RedisURL != "" {
		redisLocker, err := lease.NewRedisLockerFromURL(ctx, cfg.Infra.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		cleanups = append(cleanups, func() { redisLocker.Close() })
		locker = redisLocker
	}

	var telemetry storage.TelemetrySink
	if cfg.Infra.ClickhouseDSN != "" {
		sink, closeSink, err := createTelemetrySink(ctx, cfg.Infra.ClickhouseDSN)
		if err != nil {
			logger.Warn("clickhouse telemetry disabled", "error", err)
		} else {
			cleanups = append(cleanups, closeSink)
			telemetry = sink
		}
	}

	// A nil *Firehose must not reach the interface field.
	var augmenter orchestrator.PriceAugmenter
	if cfg.Firehose.Enabled {
		fhCfg := polymarket.DefaultFirehoseConfig()
		fhCfg.URL = cfg.Firehose.URL
		fhCfg.StaleAfter = cfg.Firehose.StaleAfter
		fh, err := polymarket.NewFirehose(ctx, &fhCfg, logger.With("component", "firehose"))
		if err != nil {
			logger.Warn("firehose disabled", "error", err)
		} else {
			cleanups = append(cleanups, func() { fh.Close() })
			augmenter = fh
		}
	}

	var metrics *observability.Metrics
	if opts.Registerer != nil {
		metrics = observability.NewMetrics("", opts.Registerer)
	}

	lexicon := semantic.DefaultLexicon()
	var provider semantic.Provider
	if cfg.LLM.Enabled {
		provider = semantic.NewProvider(semantic.ProviderConfig{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.LLM.Timeout,
			Retries:  llmRetries,
		})
	}

	classifier := semantic.NewClassifier(semantic.Options{
		Lexicon:       lexicon,
		Provider:      provider,
		LLMEnabled:    cfg.LLM.Enabled,
		PromptVersion: cfg.LLM.PromptVersion,
		MaxLLMMarkets: cfg.LLM.MaxMarkets,
		Failover: semantic.FailoverPolicy{
			Enabled:          cfg.Failover.Enabled,
			FailureThreshold: cfg.Failover.FailureThreshold,
			CooldownRuns:     cfg.Failover.CooldownRuns,
		},
		Cache:         stores.Cache,
		FailoverStore: stores.Failover,
		Logger:        logger.With("component", "semantic"),
	})

	scorer := scoring.NewScorer(scoring.Options{
		Lexicon:    lexicon,
		NewsFloors: cfg.LLM.NewsFloors,
		Weights: scoring.Weights{
			W1:     cfg.Ranking.W1,
			W2:     cfg.Ranking.W2,
			W3:     cfg.Ranking.W3,
			Lambda: cfg.Ranking.Lambda,
		},
	})

	source := polymarket.NewHTTPClient(cfg.Fetch.BaseURL,
		polymarket.WithTimeout(cfg.Fetch.Timeout),
		polymarket.WithRetries(cfg.Fetch.Retries),
		polymarket.WithRetryBackoff(cfg.Fetch.RetryBackoff),
		polymarket.WithLogger(logger.With("component", "polymarket")),
	)

	orch := orchestrator.New(orchestrator.Options{
		Source: source,
		Fetch: polymarket.FetchOptions{
			LimitPerPage: cfg.Fetch.LimitPerPage,
			MaxPages:     cfg.Fetch.MaxPages,
			Bouncer: polymarket.Bouncer{
				MinVolume:        cfg.Bouncer.MinVolume,
				MinLiquidity:     cfg.Bouncer.MinLiquidity,
				MinHoursToEnd:    cfg.Bouncer.MinHoursToEnd,
				MaxMarketAgeDays: cfg.Bouncer.MaxMarketAgeDays,
			},
		},
		Classifier: classifier,
		Scorer:     scorer,
		Snapshots:  stores.Snapshots,
		Runs:       stores.Runs,
		Dedup: dedup.Options{
			Enabled:             cfg.Dedup.Enabled,
			SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
			MinSharedTokens:     cfg.Dedup.MinSharedTokens,
			MaxPerCluster:       cfg.Dedup.MaxPerCluster,
		},
		Firehose:  augmenter,
		Telemetry: telemetry,
		Locker:    locker,
		LeaseTTL:  cfg.Infra.LeaseTTL,
		Metrics:   metrics,
		Logger:    logger.With("component", "orchestrator"),
	})

	return &App{
		Config:       cfg,
		Backend:      stores.Backend,
		Orchestrator: orch,
		Snapshots:    stores.Snapshots,
		Runs:         stores.Runs,
		Metrics:      metrics,
	}, cleanup, nil
}

// CreateStores opens the durable stores. Postgres wins over SQLite, and
// memory is used when neither is configured or useMemory is set.
func CreateStores(ctx context.Context, infra config.InfraConfig, useMemory bool) (*Stores, func(), error) {
	switch {
	case useMemory || (infra.PostgresDSN == "" && infra.SQLitePath == ""):
		return &Stores{
			Backend:   BackendMemory,
			Snapshots: memory.NewFeedSnapshotStore(),
			Cache:     memory.NewSemanticCacheStore(),
			Failover:  memory.NewFailoverStateStore(),
			Runs:      memory.NewRunStore(),
		}, func() {}, nil

	case infra.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, infra.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Stores{
			Backend:   BackendPostgres,
			Snapshots: pgstore.NewFeedSnapshotStore(pool),
			Cache:     pgstore.NewSemanticCacheStore(pool),
			Failover:  pgstore.NewFailoverStateStore(pool),
			Runs:      pgstore.NewRunStore(pool),
		}, pool.Close, nil

	default:
		db, err := sqlitestore.Open(infra.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Stores{
			Backend:   BackendSQLite,
			Snapshots: sqlitestore.NewFeedSnapshotStore(db),
			Cache:     sqlitestore.NewSemanticCacheStore(db),
			Failover:  sqlitestore.NewFailoverStateStore(db),
			Runs:      sqlitestore.NewRunStore(db),
		}, func() { db.Close() }, nil
	}
}

func createTelemetrySink(ctx context.Context, dsn string) (storage.TelemetrySink, func(), error) {
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}
	return chstore.NewRefreshRunSink(conn), func() { conn.Close() }, nil
}
