// Package orchestrator runs the refresh pipeline.
// Flow: fetch → normalize → augment → classify → score → dedup → persist.
// Each stage completes for the whole batch before the next one starts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prediction-feed/internal/dedup"
	"prediction-feed/internal/domain"
	"prediction-feed/internal/idhash"
	"prediction-feed/internal/lease"
	"prediction-feed/internal/normalization"
	"prediction-feed/internal/observability"
	"prediction-feed/internal/polymarket"
	"prediction-feed/internal/scoring"
	"prediction-feed/internal/semantic"
	"prediction-feed/internal/storage"
)

// Default lease settings.
const (
	DefaultLeaseName = "refresh"
	DefaultLeaseTTL  = 10 * time.Minute
)

// leaseReleaseTimeout bounds the release call, which runs even after ctx is cancelled.
const leaseReleaseTimeout = 5 * time.Second

// PriceAugmenter overwrites market prices with fresher values.
// *polymarket.Firehose implements it.
type PriceAugmenter interface {
	Augment(markets []domain.Market) int
}

// Options for creating an Orchestrator.
type Options struct {
	// Required
	Source     polymarket.MarketSource
	Fetch      polymarket.FetchOptions
	Classifier *semantic.Classifier
	Scorer     *scoring.Scorer
	Snapshots  storage.FeedSnapshotStore
	Runs       storage.RunStore

	// Optional
	Dedup     dedup.Options
	Firehose  PriceAugmenter        // nil disables live price augmentation
	Telemetry storage.TelemetrySink // nil disables the telemetry mirror
	Locker    lease.Locker          // nil runs without a lease
	LeaseName string
	LeaseTTL  time.Duration
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Orchestrator coordinates one refresh at a time.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.LeaseName == "" {
		opts.LeaseName = DefaultLeaseName
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{opts: opts, logger: logger, now: now}
}

// Refresh runs the full pipeline and returns its summary.
// The previous snapshot is untouched unless every stage before persistence succeeds.
// Returns lease.ErrHeld (wrapped) when another refresh holds the lease.
// The lease is renewed while the run is in flight and checked again before
// persisting; losing it fails the run with lease.ErrLost (wrapped).
func (o *Orchestrator) Refresh(ctx context.Context) (*domain.RefreshSummary, error) {
	var confirm func(context.Context) error
	if o.opts.Locker != nil {
		token, err := o.opts.Locker.Acquire(ctx, o.opts.LeaseName, o.opts.LeaseTTL)
		if err != nil {
			if errors.Is(err, lease.ErrHeld) {
				o.recordOutcome(observability.StatusSkipped)
			}
			return nil, fmt.Errorf("acquire refresh lease: %w", err)
		}
		defer o.releaseLease(token)

		var stop func()
		ctx, stop = o.keepLease(ctx, token)
		defer stop()
		confirm = func(ctx context.Context) error {
			return o.extendLease(ctx, token)
		}
	}

	summary, err := o.run(ctx, confirm)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, lease.ErrLost) && !errors.Is(err, lease.ErrLost) {
			err = fmt.Errorf("%w: %w", err, cause)
		}
		o.recordOutcome(observability.StatusFailed)
		return nil, err
	}

	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordRefresh(*summary)
	}
	return summary, nil
}

// run executes the stages. confirm, when set, must succeed right before the
// snapshot is replaced.
func (o *Orchestrator) run(ctx context.Context, confirm func(context.Context) error) (*domain.RefreshSummary, error) {
	started := o.now()
	summary := &domain.RefreshSummary{}

	// Stage 1: fetch
	stageStart := time.Now()
	fetched, err := o.opts.Source.FetchActiveMarkets(ctx, o.opts.Fetch)
	if err != nil {
		return nil, fmt.Errorf("stage fetch failed: %w", err)
	}
	summary.Timings.FetchMs = sinceMs(stageStart)

	fetchedAt := fetched.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = started
	}
	summary.RunID = idhash.ComputeRunID(fetchedAt)
	summary.FetchedAt = fetchedAt.UTC()
	summary.PagesFetched = fetched.PagesFetched
	summary.RawCount = fetched.RawCount
	summary.DroppedByBouncer = fetched.DroppedByBouncer

	logger := o.logger.With("run_id", summary.RunID)
	logger.Info("fetched markets",
		"pages", fetched.PagesFetched,
		"raw", fetched.RawCount,
		"accepted", len(fetched.Markets),
		"dropped_by_bouncer", fetched.DroppedByBouncer,
	)

	// Stage 2: normalize
	stageStart = time.Now()
	normalized := normalization.NormalizeAll(fetched.Markets)
	summary.NormalizedCount = len(normalized.Markets)
	summary.DroppedCount = normalized.Dropped
	summary.Timings.NormalizeMs = sinceMs(stageStart)

	markets := normalized.Markets
	if o.opts.Firehose != nil {
		summary.Firehose.Enabled = true
		summary.Firehose.UpdatesApplied = o.opts.Firehose.Augment(markets)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stage normalize failed: %w", err)
	}

	// Stage 3: classify
	stageStart = time.Now()
	classified, err := o.opts.Classifier.Classify(ctx, markets)
	if err != nil {
		return nil, fmt.Errorf("stage classify failed: %w", err)
	}
	summary.Semantic = classified.Metrics
	summary.Failover = classified.Failover
	summary.Timings.ClassifyMs = sinceMs(stageStart)

	logger.Info("classified markets",
		"cache_hits", classified.Metrics.CacheHits,
		"llm_attempts", classified.Metrics.LLMAttempts,
		"llm_failures", classified.Metrics.LLMFailures,
		"heuristic", classified.Metrics.HeuristicEvaluated,
		"cooldown_runs_remaining", classified.Failover.CooldownRunsRemaining,
	)

	// Stage 4: score. Prior scores are read before the snapshot is replaced.
	stageStart = time.Now()
	previous, err := o.opts.Snapshots.LoadScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("stage score failed: load previous scores: %w", err)
	}
	scored := o.opts.Scorer.Score(markets, classified.ByID, previous, started)
	summary.Timings.ScoreMs = sinceMs(stageStart)

	// Stage 5: dedup
	stageStart = time.Now()
	deduped := dedup.Apply(scored.Curated, o.opts.Dedup)
	summary.DedupDemotedCount = len(deduped.Demoted)
	summary.Timings.DedupMs = sinceMs(stageStart)

	rejected := make([]domain.CuratedFeedItem, 0, len(scored.Rejected)+len(deduped.Demoted))
	rejected = append(rejected, scored.Rejected...)
	rejected = append(rejected, deduped.Demoted...)
	scoring.SortByRank(rejected)

	summary.CuratedCount = len(deduped.Curated)
	summary.RejectedCount = len(rejected)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stage dedup failed: %w", err)
	}

	// Stage 6: persist
	stageStart = time.Now()
	snapshot := make([]domain.CuratedFeedItem, 0, len(deduped.Curated)+len(rejected))
	snapshot = append(snapshot, deduped.Curated...)
	snapshot = append(snapshot, rejected...)

	if confirm != nil {
		if err := confirm(ctx); err != nil {
			return nil, fmt.Errorf("stage persist failed: %w", err)
		}
	}
	if err := o.opts.Snapshots.ReplaceSnapshot(ctx, summary.RunID, snapshot); err != nil {
		return nil, fmt.Errorf("stage persist failed: %w", err)
	}

	summary.Timings.PersistMs = sinceMs(stageStart)
	summary.Timings.TotalMs = o.now().Sub(started).Milliseconds()

	o.writeTelemetry(ctx, logger, summary)

	logger.Info("refresh completed",
		"curated", summary.CuratedCount,
		"rejected", summary.RejectedCount,
		"dedup_demoted", summary.DedupDemotedCount,
		"total_ms", summary.Timings.TotalMs,
	)
	return summary, nil
}

// writeTelemetry records run rows. Failures are logged and never fail the refresh.
func (o *Orchestrator) writeTelemetry(ctx context.Context, logger *slog.Logger, summary *domain.RefreshSummary) {
	run := domain.IngestionRun{
		RunID:           summary.RunID,
		FetchedAt:       summary.FetchedAt,
		PagesFetched:    summary.PagesFetched,
		RawCount:        summary.RawCount,
		NormalizedCount: summary.NormalizedCount,
		DroppedCount:    summary.DroppedCount,
	}
	if err := o.opts.Runs.RecordIngestion(ctx, run); err != nil {
		logger.Warn("record ingestion run failed", "error", err)
	}
	if err := o.opts.Runs.RecordSemanticRun(ctx, *summary); err != nil {
		logger.Warn("record semantic run failed", "error", err)
	}
	if o.opts.Telemetry != nil {
		if err := o.opts.Telemetry.AppendRefreshRun(ctx, *summary); err != nil {
			logger.Warn("append refresh telemetry failed", "error", err)
		}
	}
}

// keepLease renews the lease every third of its TTL until stop is called.
// Losing the lease cancels the returned context with a cause wrapping
// lease.ErrLost. Transient renewal errors are logged and retried.
func (o *Orchestrator) keepLease(ctx context.Context, token string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(max(o.opts.LeaseTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				err := o.extendLease(runCtx, token)
				switch {
				case err == nil:
				case errors.Is(err, lease.ErrLost):
					o.logger.Error("refresh lease lost, cancelling run", "lease", o.opts.LeaseName)
					cancel(err)
					return
				case runCtx.Err() != nil:
					return
				default:
					o.logger.Warn("renew refresh lease failed", "error", err)
				}
			}
		}
	}()

	return runCtx, func() {
		cancel(nil)
		<-done
	}
}

func (o *Orchestrator) extendLease(ctx context.Context, token string) error {
	if err := o.opts.Locker.Extend(ctx, o.opts.LeaseName, token, o.opts.LeaseTTL); err != nil {
		return fmt.Errorf("renew refresh lease: %w", err)
	}
	return nil
}

func (o *Orchestrator) releaseLease(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
	defer cancel()
	if err := o.opts.Locker.Release(ctx, o.opts.LeaseName, token); err != nil {
		o.logger.Warn("release refresh lease failed", "error", err)
	}
}

func (o *Orchestrator) recordOutcome(status string) {
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordRefreshOutcome(status)
	}
}

func sinceMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
