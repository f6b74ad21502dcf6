package memory

import (
	"context"
	"sync"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// FailoverStateStore is an in-memory implementation of storage.FailoverStateStore.
type FailoverStateStore struct {
	mu    sync.RWMutex
	state *domain.FailoverState
}

// NewFailoverStateStore creates a new in-memory failover state store.
func NewFailoverStateStore() *FailoverStateStore {
	return &FailoverStateStore{}
}

// Get returns the persisted state.
func (s *FailoverStateStore) Get(_ context.Context) (domain.FailoverState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return domain.FailoverState{}, storage.ErrNotFound
	}
	return *s.state, nil
}

// Save overwrites the state.
func (s *FailoverStateStore) Save(_ context.Context, state domain.FailoverState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = &state
	return nil
}
