package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// RefreshRunSink implements storage.TelemetrySink using the refresh_run_events table.
type RefreshRunSink struct {
	conn *Conn
}

// NewRefreshRunSink creates a new RefreshRunSink.
func NewRefreshRunSink(conn *Conn) *RefreshRunSink {
	return &RefreshRunSink{conn: conn}
}

// Compile-time interface check.
var _ storage.TelemetrySink = (*RefreshRunSink)(nil)

// AppendRefreshRun appends one summary row. The table is append-only; re-sending a
// run id adds another event.
func (s *RefreshRunSink) AppendRefreshRun(ctx context.Context, summary domain.RefreshSummary) error {
	if summary.RunID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal refresh summary: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO refresh_run_events (
			run_id, fetched_at, pages_fetched, raw_count, dropped_by_bouncer,
			normalized_count, dropped_count, curated_count, rejected_count, dedup_demoted_count,
			provider, model, prompt_version, cache_hits, llm_attempts, llm_failures,
			failover_triggered, firehose_updates, total_ms, summary_json
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var triggered uint8
	if summary.Failover.TriggeredThisRun {
		triggered = 1
	}

	err = batch.Append(
		summary.RunID,
		summary.FetchedAt,
		uint32(summary.PagesFetched),
		uint32(summary.RawCount),
		uint32(summary.DroppedByBouncer),
		uint32(summary.NormalizedCount),
		uint32(summary.DroppedCount),
		uint32(summary.CuratedCount),
		uint32(summary.RejectedCount),
		uint32(summary.DedupDemotedCount),
		summary.Semantic.Provider,
		summary.Semantic.Model,
		summary.Semantic.PromptVersion,
		uint32(summary.Semantic.CacheHits),
		uint32(summary.Semantic.LLMAttempts),
		uint32(summary.Semantic.LLMFailures),
		triggered,
		uint32(summary.Firehose.UpdatesApplied),
		summary.Timings.TotalMs,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
