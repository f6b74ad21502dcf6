package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

const snapshotChunkSize = 50

// FeedSnapshotStore implements storage.FeedSnapshotStore using SQLite.
type FeedSnapshotStore struct {
	db *DB
}

// NewFeedSnapshotStore creates a new FeedSnapshotStore.
func NewFeedSnapshotStore(db *DB) *FeedSnapshotStore {
	return &FeedSnapshotStore{db: db}
}

// Compile-time interface check.
var _ storage.FeedSnapshotStore = (*FeedSnapshotStore)(nil)

// LoadScores returns the front-page score of every market in the current snapshot.
func (s *FeedSnapshotStore) LoadScores(ctx context.Context) (map[string]float64, error) {
	var rows []curatedFeedRow
	if err := s.db.WithContext(ctx).Select("market_id", "front_page_score").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query feed scores: %w", err)
	}

	scores := make(map[string]float64, len(rows))
	for _, row := range rows {
		scores[row.MarketID] = row.FrontPageScore
	}
	return scores, nil
}

// ReplaceSnapshot deletes the previous snapshot and inserts items in one transaction.
func (s *FeedSnapshotStore) ReplaceSnapshot(ctx context.Context, runID string, items []domain.CuratedFeedItem) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	rows := make([]curatedFeedRow, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[item.ID] = struct{}{}

		row, err := toFeedRow(runID, item)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&curatedFeedRow{}).Error; err != nil {
			return fmt.Errorf("clear curated feed: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, snapshotChunkSize).Error; err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert curated feed: %w", err)
		}
		return nil
	})
	return err
}

// List returns the snapshot, curated first, then by front-page score descending.
func (s *FeedSnapshotStore) List(ctx context.Context) ([]domain.CuratedFeedItem, error) {
	var rows []curatedFeedRow
	err := s.db.WithContext(ctx).
		Order("is_curated DESC").
		Order("front_page_score DESC").
		Order("market_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query curated feed: %w", err)
	}

	items := make([]domain.CuratedFeedItem, 0, len(rows))
	for _, row := range rows {
		item, err := fromFeedRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func toFeedRow(runID string, item domain.CuratedFeedItem) (curatedFeedRow, error) {
	tags, err := json.Marshal(nonNil(item.Tags))
	if err != nil {
		return curatedFeedRow{}, fmt.Errorf("marshal tags for %s: %w", item.ID, err)
	}
	codes, err := json.Marshal(nonNil(item.Score.ReasonCodes))
	if err != nil {
		return curatedFeedRow{}, fmt.Errorf("marshal reason codes for %s: %w", item.ID, err)
	}

	return curatedFeedRow{
		MarketID:            item.ID,
		RunID:               runID,
		Question:            item.Question,
		Description:         item.Description,
		URL:                 item.URL,
		Probability:         item.Probability,
		EndDate:             item.EndDate,
		Liquidity:           item.Liquidity,
		Volume:              item.Volume,
		OpenInterest:        item.OpenInterest,
		TagsJSON:            string(tags),
		Category:            item.Score.Category.String(),
		GeoTag:              item.GeoTag.String(),
		CivicScore:          item.Score.CivicScore,
		NewsworthinessScore: item.Score.NewsworthinessScore,
		IsCurated:           item.IsCurated,
		DecisionReason:      item.DecisionReason,
		ReasonCodesJSON:     string(codes),
		FrontPageScore:      item.FrontPageScore,
		TrendDelta:          item.TrendDelta,
		Source:              item.Source.String(),
		CreatedAt:           item.CreatedAt,
		UpdatedAt:           item.UpdatedAt,
	}, nil
}

func fromFeedRow(row curatedFeedRow) (domain.CuratedFeedItem, error) {
	item := domain.CuratedFeedItem{
		Market: domain.Market{
			ID:           row.MarketID,
			Question:     row.Question,
			Description:  row.Description,
			URL:          row.URL,
			Probability:  row.Probability,
			EndDate:      row.EndDate,
			Liquidity:    row.Liquidity,
			Volume:       row.Volume,
			OpenInterest: row.OpenInterest,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		},
		IsCurated:      row.IsCurated,
		DecisionReason: row.DecisionReason,
		GeoTag:         domain.GeoTag(row.GeoTag),
		Score: domain.ScoreBreakdown{
			CivicScore:          row.CivicScore,
			NewsworthinessScore: row.NewsworthinessScore,
			Category:            domain.Category(row.Category),
		},
		FrontPageScore: row.FrontPageScore,
		TrendDelta:     row.TrendDelta,
		Source:         domain.ClassificationSource(row.Source),
	}
	if err := json.Unmarshal([]byte(row.TagsJSON), &item.Tags); err != nil {
		return item, fmt.Errorf("decode tags for %s: %w", row.MarketID, err)
	}
	if err := json.Unmarshal([]byte(row.ReasonCodesJSON), &item.Score.ReasonCodes); err != nil {
		return item, fmt.Errorf("decode reason codes for %s: %w", row.MarketID, err)
	}
	return item, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
