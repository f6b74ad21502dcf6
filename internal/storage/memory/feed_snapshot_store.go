package memory

import (
	"context"
	"sync"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// FeedSnapshotStore is an in-memory implementation of storage.FeedSnapshotStore.
type FeedSnapshotStore struct {
	mu    sync.RWMutex
	runID string
	items []domain.CuratedFeedItem
}

// NewFeedSnapshotStore creates a new in-memory feed snapshot store.
func NewFeedSnapshotStore() *FeedSnapshotStore {
	return &FeedSnapshotStore{}
}

// LoadScores returns front-page scores keyed by market id.
func (s *FeedSnapshotStore) LoadScores(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make(map[string]float64, len(s.items))
	for _, item := range s.items {
		scores[item.ID] = item.FrontPageScore
	}
	return scores, nil
}

// ReplaceSnapshot swaps the snapshot.
func (s *FeedSnapshotStore) ReplaceSnapshot(_ context.Context, runID string, items []domain.CuratedFeedItem) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[item.ID] = struct{}{}
	}

	cp := make([]domain.CuratedFeedItem, len(items))
	copy(cp, items)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runID = runID
	s.items = cp
	return nil
}

// List returns the snapshot in listing order.
func (s *FeedSnapshotStore) List(_ context.Context) ([]domain.CuratedFeedItem, error) {
	s.mu.RLock()
	out := make([]domain.CuratedFeedItem, len(s.items))
	copy(out, s.items)
	s.mu.RUnlock()

	storage.SortSnapshot(out)
	return out, nil
}

// RunID returns the run that wrote the current snapshot.
func (s *FeedSnapshotStore) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}
