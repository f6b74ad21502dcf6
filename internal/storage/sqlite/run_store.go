package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// RunStore implements storage.RunStore using SQLite.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// RecordIngestion upserts the ingestion row and moves latest_state to it atomically.
func (s *RunStore) RecordIngestion(ctx context.Context, run domain.IngestionRun) error {
	if run.RunID == "" {
		return storage.ErrInvalidInput
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := ingestionRunRow{
			RunID:           run.RunID,
			FetchedAt:       run.FetchedAt,
			PagesFetched:    run.PagesFetched,
			RawCount:        run.RawCount,
			NormalizedCount: run.NormalizedCount,
			DroppedCount:    run.DroppedCount,
			CreatedAt:       now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fetched_at", "pages_fetched", "raw_count", "normalized_count", "dropped_count"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert ingestion run: %w", err)
		}

		latest := latestStateRow{ID: 1, RunID: run.RunID, UpdatedAt: now}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&latest).Error
		if err != nil {
			return fmt.Errorf("update latest state: %w", err)
		}
		return nil
	})
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
	row := semanticRefreshRunRow{
		RunID:              summary.RunID,
		FetchedAt:          summary.FetchedAt,
		PromptVersion:      sem.PromptVersion,
		Provider:           sem.Provider,
		Model:              sem.Model,
		LLMEnabled:         sem.LLMEnabled,
		LLMAvailable:       sem.LLMAvailable,
		CacheHits:          sem.CacheHits,
		CacheMisses:        sem.CacheMisses,
		LLMAttempts:        sem.LLMAttempts,
		LLMEvaluated:       sem.LLMEvaluated,
		LLMFailures:        sem.LLMFailures,
		HeuristicEvaluated: sem.HeuristicEvaluated,
		StrictExcluded:     sem.StrictExcluded,
		CacheWrites:        sem.CacheWrites,
		SummaryJSON:        string(payload),
		CreatedAt:          time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert semantic refresh run: %w", err)
	}
	return nil
}

// LatestRunID returns the run id in latest_state. Returns ErrNotFound before the first run.
func (s *RunStore) LatestRunID(ctx context.Context) (string, error) {
	var row latestStateRow
	if err := s.db.WithContext(ctx).First(&row, 1).Error; err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get latest run id: %w", err)
	}
	return row.RunID, nil
}
