package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/storage"
)

// FailoverStateStore implements storage.FailoverStateStore using SQLite.
type FailoverStateStore struct {
	db *DB
}

// NewFailoverStateStore creates a new FailoverStateStore.
func NewFailoverStateStore(db *DB) *FailoverStateStore {
	return &FailoverStateStore{db: db}
}

// Compile-time interface check.
var _ storage.FailoverStateStore = (*FailoverStateStore)(nil)

// Get returns the singleton state. Returns ErrNotFound if it was never saved.
func (s *FailoverStateStore) Get(ctx context.Context) (domain.FailoverState, error) {
	var row failoverStateRow
	if err := s.db.WithContext(ctx).First(&row, 1).Error; err != nil {
		if isNotFoundError(err) {
			return domain.FailoverState{}, storage.ErrNotFound
		}
		return domain.FailoverState{}, fmt.Errorf("get failover state: %w", err)
	}
	return domain.FailoverState{
		ConsecutiveFailures:   row.ConsecutiveFailures,
		CooldownRunsRemaining: row.CooldownRunsRemaining,
		LastTriggeredAt:       row.LastTriggeredAt,
		LastReason:            row.LastReason,
	}, nil
}

// Save upserts the singleton state.
func (s *FailoverStateStore) Save(ctx context.Context, state domain.FailoverState) error {
	row := failoverStateRow{
		ID:                    1,
		ConsecutiveFailures:   state.ConsecutiveFailures,
		CooldownRunsRemaining: state.CooldownRunsRemaining,
		LastTriggeredAt:       state.LastTriggeredAt,
		LastReason:            state.LastReason,
		UpdatedAt:             time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save failover state: %w", err)
	}
	return nil
}
