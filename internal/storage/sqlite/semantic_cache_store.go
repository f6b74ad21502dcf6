package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// SemanticCacheStore implements storage.SemanticCacheStore using SQLite.
type SemanticCacheStore struct {
	db *DB
}

// NewSemanticCacheStore creates a new SemanticCacheStore.
func NewSemanticCacheStore(db *DB) *SemanticCacheStore {
	return &SemanticCacheStore{db: db}
}

// Compile-time interface check.
var _ storage.SemanticCacheStore = (*SemanticCacheStore)(nil)

// Load returns cached rows for the given market ids.
func (s *SemanticCacheStore) Load(ctx context.Context, ids []string) (map[string]domain.SemanticCacheRow, error) {
	out := make(map[string]domain.SemanticCacheRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []semanticCacheRow
	if err := s.db.WithContext(ctx).Where("market_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query semantic cache: %w", err)
	}
	for _, row := range rows {
		out[row.MarketID] = domain.SemanticCacheRow{
			MarketID:      row.MarketID,
			PromptVersion: row.PromptVersion,
			Fingerprint:   row.Fingerprint,
			ModelName:     row.ModelName,
			RawJSON:       row.RawJSON,
			UpdatedAt:     row.UpdatedAtMs,
		}
	}
	return out, nil
}

// Upsert overwrites the cached row of every given market.
func (s *SemanticCacheStore) Upsert(ctx context.Context, rows []domain.SemanticCacheRow) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]semanticCacheRow, 0, len(rows))
	for _, row := range rows {
		if row.MarketID == "" {
			return storage.ErrInvalidInput
		}
		records = append(records, semanticCacheRow{
			MarketID:      row.MarketID,
			PromptVersion: row.PromptVersion,
			Fingerprint:   row.Fingerprint,
			ModelName:     row.ModelName,
			RawJSON:       row.RawJSON,
			UpdatedAtMs:   row.UpdatedAt,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(records, snapshotChunkSize).Error
	if err != nil {
		return fmt.Errorf("upsert semantic cache: %w", err)
	}
	return nil
}
