package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// RecordIngestion upserts the ingestion row and moves latest_state to it atomically.
func (s *RunStore) RecordIngestion(ctx context.Context, run domain.IngestionRun) error {
	if run.RunID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO ingestion_runs (
			run_id, fetched_at, pages_fetched, raw_count, normalized_count, dropped_count
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			fetched_at = EXCLUDED.fetched_at,
			pages_fetched = EXCLUDED.pages_fetched,
			raw_count = EXCLUDED.raw_count,
			normalized_count = EXCLUDED.normalized_count,
			dropped_count = EXCLUDED.dropped_count
	`,
		run.RunID,
		run.FetchedAt,
		run.PagesFetched,
		run.RawCount,
		run.NormalizedCount,
		run.DroppedCount,
	)
	if err != nil {
		return fmt.Errorf("upsert ingestion run: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO latest_state (id, run_id, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			updated_at = EXCLUDED.updated_at
	`, run.RunID)
	if err != nil {
		return fmt.Errorf("update latest state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RecordSemanticRun upserts the semantic telemetry row for the run.
func (s *RunStore) RecordSemanticRun(ctx context.Context, summary domain.RefreshSummary) error {
	if summary.RunID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal refresh summary: %w", err)
	}

	sem := summary.Semantic
	_, err = s.pool.Exec(ctx, `
		INSERT INTO semantic_refresh_runs (
			run_id, fetched_at, prompt_version, provider, model, llm_enabled, llm_available,
			cache_hits, cache_misses, llm_attempts, llm_evaluated, llm_failures,
			heuristic_evaluated, strict_excluded, cache_writes, summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (run_id) DO UPDATE SET
			fetched_at = EXCLUDED.fetched_at,
			prompt_version = EXCLUDED.prompt_version,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			llm_enabled = EXCLUDED.llm_enabled,
			llm_available = EXCLUDED.llm_available,
			cache_hits = EXCLUDED.cache_hits,
			cache_misses = EXCLUDED.cache_misses,
			llm_attempts = EXCLUDED.llm_attempts,
			llm_evaluated = EXCLUDED.llm_evaluated,
			llm_failures = EXCLUDED.llm_failures,
			heuristic_evaluated = EXCLUDED.heuristic_evaluated,
			strict_excluded = EXCLUDED.strict_excluded,
			cache_writes = EXCLUDED.cache_writes,
			summary = EXCLUDED.summary
	`,
		summary.RunID,
		summary.FetchedAt,
		sem.PromptVersion,
		sem.Provider,
		sem.Model,
		sem.LLMEnabled,
		sem.LLMAvailable,
		sem.CacheHits,
		sem.CacheMisses,
		sem.LLMAttempts,
		sem.LLMEvaluated,
		sem.LLMFailures,
		sem.HeuristicEvaluated,
		sem.StrictExcluded,
		sem.CacheWrites,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert semantic refresh run: %w", err)
	}
	return nil
}

// LatestRunID returns the run id in latest_state. Returns ErrNotFound before the first run.
func (s *RunStore) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.pool.QueryRow(ctx, `SELECT run_id FROM latest_state WHERE id = 1`).Scan(&runID)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get latest run id: %w", err)
	}
	return runID, nil
}
