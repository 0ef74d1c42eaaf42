package database

import (
	"context"
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunStore saves composition run summaries.
type RunStore struct {
	db *gorm.DB
}

// NewRunStore wraps a migrated gorm handle.
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// SaveRun inserts the run or updates the row with the same run id.
func (s *RunStore) SaveRun(ctx context.Context, run *models.CompositionRun) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "failed_state", "failure_cause", "midi_path", "track_count", "total_beats", "tier", "is_fallback", "updated_at"}),
		}).
		Create(run).Error
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]models.CompositionRun, error) {
	var runs []models.CompositionRun
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
