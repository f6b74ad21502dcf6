package memory

import (
	"context"
	"sync"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// SemanticCacheStore is an in-memory implementation of storage.SemanticCacheStore.
type SemanticCacheStore struct {
	mu   sync.RWMutex
	rows map[string]domain.SemanticCacheRow
}

// NewSemanticCacheStore creates a new in-memory semantic cache store.
func NewSemanticCacheStore() *SemanticCacheStore {
	return &SemanticCacheStore{
		rows: make(map[string]domain.SemanticCacheRow),
	}
}

// Load returns rows for the given ids.
func (s *SemanticCacheStore) Load(_ context.Context, marketIDs []string) (map[string]domain.SemanticCacheRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.SemanticCacheRow, len(marketIDs))
	for _, id := range marketIDs {
		if row, ok := s.rows[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

// Upsert inserts or overwrites rows by market id.
func (s *SemanticCacheStore) Upsert(_ context.Context, rows []domain.SemanticCacheRow) error {
	for _, row := range rows {
		if row.MarketID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		s.rows[row.MarketID] = row
	}
	return nil
}

// Len returns the number of cached rows.
func (s *SemanticCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
