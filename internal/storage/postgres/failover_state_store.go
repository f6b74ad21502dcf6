package postgres

import (
	"context"
	"fmt"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// FailoverStateStore implements storage.FailoverStateStore using PostgreSQL.
type FailoverStateStore struct {
	pool *Pool
}

// NewFailoverStateStore creates a new FailoverStateStore.
func NewFailoverStateStore(pool *Pool) *FailoverStateStore {
	return &FailoverStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FailoverStateStore = (*FailoverStateStore)(nil)

// Get returns the singleton state. Returns ErrNotFound if it was never saved.
func (s *FailoverStateStore) Get(ctx context.Context) (domain.FailoverState, error) {
	query := `
		SELECT consecutive_failures, cooldown_runs_remaining, last_triggered_at, last_reason
		FROM semantic_failover_state
		WHERE id = 1
	`

	var state domain.FailoverState
	err := s.pool.QueryRow(ctx, query).Scan(
		&state.ConsecutiveFailures,
		&state.CooldownRunsRemaining,
		&state.LastTriggeredAt,
		&state.LastReason,
	)
	if err != nil {
		if isNotFoundError(err) {
			return domain.FailoverState{}, storage.ErrNotFound
		}
		return domain.FailoverState{}, fmt.Errorf("get failover state: %w", err)
	}
	return state, nil
}

// Save upserts the singleton state.
func (s *FailoverStateStore) Save(ctx context.Context, state domain.FailoverState) error {
	query := `
		INSERT INTO semantic_failover_state (
			id, consecutive_failures, cooldown_runs_remaining, last_triggered_at, last_reason, updated_at
		) VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			consecutive_failures = EXCLUDED.consecutive_failures,
			cooldown_runs_remaining = EXCLUDED.cooldown_runs_remaining,
			last_triggered_at = EXCLUDED.last_triggered_at,
			last_reason = EXCLUDED.last_reason,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		state.ConsecutiveFailures,
		state.CooldownRunsRemaining,
		state.LastTriggeredAt,
		state.LastReason,
	)
	if err != nil {
		return fmt.Errorf("save failover state: %w", err)
	}
	return nil
}
