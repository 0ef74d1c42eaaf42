package patternstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// MemoryStore keeps patterns in process. Used for tests and ephemeral deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string]models.Pattern
	order    []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[string]models.Pattern)}
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]models.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("query", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []models.Pattern
	for _, id := range s.order {
		p := s.patterns[id]
		if matchesFilters(p, filters) {
			candidates = append(candidates, p)
		}
	}
	return rank(candidates, embedding, topK), nil
}

func (s *MemoryStore) Upsert(_ context.Context, patterns ...models.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range patterns {
		if p.ID == "" {
			return fmt.Errorf("pattern without id")
		}
		if _, exists := s.patterns[p.ID]; !exists {
			s.order = append(s.order, p.ID)
		}
		s.patterns[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns), nil
}

func (s *MemoryStore) Close() error { return nil }
