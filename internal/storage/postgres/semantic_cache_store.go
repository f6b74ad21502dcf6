package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// SemanticCacheStore implements storage.SemanticCacheStore using PostgreSQL.
type SemanticCacheStore struct {
	pool *Pool
}

// NewSemanticCacheStore creates a new SemanticCacheStore.
func NewSemanticCacheStore(pool *Pool) *SemanticCacheStore {
	return &SemanticCacheStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SemanticCacheStore = (*SemanticCacheStore)(nil)

// Load returns cached rows for the given market ids. Missing ids are absent from the map.
func (s *SemanticCacheStore) Load(ctx context.Context, ids []string) (map[string]domain.SemanticCacheRow, error) {
	out := make(map[string]domain.SemanticCacheRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT market_id, prompt_version, fingerprint, model_name, raw_json, updated_at_ms
		FROM semantic_market_cache
		WHERE market_id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query semantic cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.SemanticCacheRow
		if err := rows.Scan(
			&row.MarketID,
			&row.PromptVersion,
			&row.Fingerprint,
			&row.ModelName,
			&row.RawJSON,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan semantic cache: %w", err)
		}
		out[row.MarketID] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate semantic cache: %w", err)
	}
	return out, nil
}

// Upsert overwrites the cached row of every given market.
func (s *SemanticCacheStore) Upsert(ctx context.Context, rows []domain.SemanticCacheRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO semantic_market_cache (
			market_id, prompt_version, fingerprint, model_name, raw_json, updated_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_id) DO UPDATE SET
			prompt_version = EXCLUDED.prompt_version,
			fingerprint = EXCLUDED.fingerprint,
			model_name = EXCLUDED.model_name,
			raw_json = EXCLUDED.raw_json,
			updated_at_ms = EXCLUDED.updated_at_ms
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(rows); start += snapshotChunkSize {
		end := start + snapshotChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			if row.MarketID == "" {
				return storage.ErrInvalidInput
			}
			batch.Queue(query,
				row.MarketID,
				row.PromptVersion,
				row.Fingerprint,
				row.ModelName,
				row.RawJSON,
				row.UpdatedAt,
			)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("upsert semantic cache: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
