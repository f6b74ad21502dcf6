package memory

import (
	"context"
	"sync"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore and storage.TelemetrySink.
type RunStore struct {
	mu        sync.RWMutex
	ingestion map[string]domain.IngestionRun
	semantic  map[string]domain.RefreshSummary
	events    []domain.RefreshSummary
	latest    string
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		ingestion: make(map[string]domain.IngestionRun),
		semantic:  make(map[string]domain.RefreshSummary),
	}
}

// RecordIngestion upserts the ingestion run and moves the latest pointer.
func (s *RunStore) RecordIngestion(_ context.Context, run domain.IngestionRun) error {
	if run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ingestion[run.RunID] = run
	s.latest = run.RunID
	return nil
}

// RecordSemanticRun upserts the run summary.
func (s *RunStore) RecordSemanticRun(_ context.Context, summary domain.RefreshSummary) error {
	if summary.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.semantic[summary.RunID] = summary
	return nil
}

// LatestRunID returns the latest recorded run id.
func (s *RunStore) LatestRunID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == "" {
		return "", storage.ErrNotFound
	}
	return s.latest, nil
}

// AppendRefreshRun appends a summary to the event log.
func (s *RunStore) AppendRefreshRun(_ context.Context, summary domain.RefreshSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, summary)
	return nil
}

// IngestionRun returns a recorded ingestion run.
func (s *RunStore) IngestionRun(runID string) (domain.IngestionRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.ingestion[runID]
	return run, ok
}

// SemanticRun returns a recorded run summary.
func (s *RunStore) SemanticRun(runID string) (domain.RefreshSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.semantic[runID]
	return summary, ok
}

// Events returns a copy of the appended summaries.
func (s *RunStore) Events() []domain.RefreshSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RefreshSummary, len(s.events))
	copy(out, s.events)
	return out
}
