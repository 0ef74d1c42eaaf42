package patternstore

import (
	"context"
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps patterns in the service database (Postgres in production).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already migrated gorm handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("patternstore: nil database handle")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]models.Pattern, error) {
	q := s.db.WithContext(ctx).Model(&models.PatternRecord{})
	if kind := filters[FilterKind]; kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if genre := filters[FilterGenre]; genre != "" {
		q = q.Where("LOWER(genre) = LOWER(?)", genre)
	}

	var records []models.PatternRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, unavailable("query", err)
	}

	candidates := make([]models.Pattern, 0, len(records))
	for _, r := range records {
		p := r.ToPattern(0)
		if matchesFilters(p, filters) {
			candidates = append(candidates, p)
		}
	}
	return rank(candidates, embedding, topK), nil
}

func (s *GormStore) Upsert(ctx context.Context, patterns ...models.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}
	records := make([]models.PatternRecord, 0, len(patterns))
	for _, p := range patterns {
		if p.ID == "" {
			return fmt.Errorf("pattern without id")
		}
		records = append(records, models.PatternRecordFrom(p))
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&records).Error
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.PatternRecord{}).Count(&n).Error; err != nil {
		return 0, unavailable("count", err)
	}
	return int(n), nil
}

// Close is a no-op; the gorm handle is owned by the caller.
func (s *GormStore) Close() error { return nil }
