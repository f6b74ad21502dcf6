package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// snapshotChunkSize bounds the number of inserts sent per batch round trip.
const snapshotChunkSize = 50

// FeedSnapshotStore implements storage.FeedSnapshotStore using PostgreSQL.
type FeedSnapshotStore struct {
	pool *Pool
}

// NewFeedSnapshotStore creates a new FeedSnapshotStore.
func NewFeedSnapshotStore(pool *Pool) *FeedSnapshotStore {
	return &FeedSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeedSnapshotStore = (*FeedSnapshotStore)(nil)

// LoadScores returns the front-page score of every market in the current snapshot.
func (s *FeedSnapshotStore) LoadScores(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT market_id, front_page_score FROM curated_feed`)
	if err != nil {
		return nil, fmt.Errorf("query feed scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan feed score: %w", err)
		}
		scores[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed scores: %w", err)
	}
	return scores, nil
}

// ReplaceSnapshot deletes the previous snapshot and inserts items in one transaction.
// A failure leaves the previous snapshot intact.
func (s *FeedSnapshotStore) ReplaceSnapshot(ctx context.Context, runID string, items []domain.CuratedFeedItem) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM curated_feed`); err != nil {
		return fmt.Errorf("clear curated feed: %w", err)
	}

	query := `
		INSERT INTO curated_feed (
			market_id, run_id, question, description, url, probability, end_date,
			liquidity, volume, open_interest, tags, category, geo_tag,
			civic_score, newsworthiness_score, is_curated, decision_reason, reason_codes,
			front_page_score, trend_delta, source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	for start := 0; start < len(items); start += snapshotChunkSize {
		end := start + snapshotChunkSize
		if end > len(items) {
			end = len(items)
		}

		batch := &pgx.Batch{}
		for _, item := range items[start:end] {
			batch.Queue(query,
				item.ID,
				runID,
				item.Question,
				item.Description,
				item.URL,
				item.Probability,
				item.EndDate,
				item.Liquidity,
				item.Volume,
				item.OpenInterest,
				nonNil(item.Tags),
				item.Score.Category.String(),
				item.GeoTag.String(),
				item.Score.CivicScore,
				item.Score.NewsworthinessScore,
				item.IsCurated,
				item.DecisionReason,
				nonNil(item.Score.ReasonCodes),
				item.FrontPageScore,
				item.TrendDelta,
				item.Source.String(),
				item.CreatedAt,
				item.UpdatedAt,
			)
		}

		if err := sendBatch(ctx, tx, batch); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert curated feed chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// List returns the snapshot, curated first, then by front-page score descending.
func (s *FeedSnapshotStore) List(ctx context.Context) ([]domain.CuratedFeedItem, error) {
	query := `
		SELECT market_id, question, description, url, probability, end_date,
			liquidity, volume, open_interest, tags, category, geo_tag,
			civic_score, newsworthiness_score, is_curated, decision_reason, reason_codes,
			front_page_score, trend_delta, source, created_at, updated_at
		FROM curated_feed
		ORDER BY is_curated DESC, front_page_score DESC, market_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query curated feed: %w", err)
	}
	defer rows.Close()

	var items []domain.CuratedFeedItem
	for rows.Next() {
		item, err := scanFeedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan curated feed: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curated feed: %w", err)
	}
	return items, nil
}

func scanFeedItem(row pgx.Row) (domain.CuratedFeedItem, error) {
	var (
		item     domain.CuratedFeedItem
		category string
		geo      string
		source   string
	)
	err := row.Scan(
		&item.ID,
		&item.Question,
		&item.Description,
		&item.URL,
		&item.Probability,
		&item.EndDate,
		&item.Liquidity,
		&item.Volume,
		&item.OpenInterest,
		&item.Tags,
		&category,
		&geo,
		&item.Score.CivicScore,
		&item.Score.NewsworthinessScore,
		&item.IsCurated,
		&item.DecisionReason,
		&item.Score.ReasonCodes,
		&item.FrontPageScore,
		&item.TrendDelta,
		&source,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return item, err
	}
	item.Score.Category = domain.Category(category)
	item.GeoTag = domain.GeoTag(geo)
	item.Source = domain.ClassificationSource(source)
	return item, nil
}

// sendBatch executes every queued statement and closes the batch results.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
