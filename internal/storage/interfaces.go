package storage

import (
	"context"

	"prediction-feed/internal/domain"
)

// FeedSnapshotStore owns the curated_feed table. Each run replaces it wholesale.
type FeedSnapshotStore interface {
	// LoadScores returns the front-page score of every item in the current
	// snapshot, keyed by market id. An empty snapshot yields an empty map.
	LoadScores(ctx context.Context) (map[string]float64, error)

	// ReplaceSnapshot atomically swaps the snapshot for items.
	// On error the previous snapshot is left intact.
	ReplaceSnapshot(ctx context.Context, runID string, items []domain.CuratedFeedItem) error

	// List returns the current snapshot: curated items first, then by
	// front-page score descending, then id ascending.
	List(ctx context.Context) ([]domain.CuratedFeedItem, error)
}

// SemanticCacheStore owns semantic_market_cache, one row per market id.
type SemanticCacheStore interface {
	// Load returns rows for the given ids. Ids without a row are absent from the map.
	Load(ctx context.Context, marketIDs []string) (map[string]domain.SemanticCacheRow, error)

	// Upsert inserts rows or overwrites existing rows for the same market id.
	Upsert(ctx context.Context, rows []domain.SemanticCacheRow) error
}

// FailoverStateStore owns the single semantic_failover_state row.
type FailoverStateStore interface {
	// Get returns the persisted state.
	// Returns ErrNotFound if no state has been saved yet.
	Get(ctx context.Context) (domain.FailoverState, error)

	// Save overwrites the state.
	Save(ctx context.Context, state domain.FailoverState) error
}

// RunStore records per-run telemetry.
type RunStore interface {
	// RecordIngestion upserts the ingestion_runs row and points latest_state at it.
	RecordIngestion(ctx context.Context, run domain.IngestionRun) error

	// RecordSemanticRun upserts the semantic_refresh_runs row for summary.RunID.
	RecordSemanticRun(ctx context.Context, summary domain.RefreshSummary) error

	// LatestRunID returns the run id recorded in latest_state.
	// Returns ErrNotFound if no run has been recorded.
	LatestRunID(ctx context.Context) (string, error)
}

// TelemetrySink receives an append-only copy of every refresh summary.
type TelemetrySink interface {
	AppendRefreshRun(ctx context.Context, summary domain.RefreshSummary) error
}
