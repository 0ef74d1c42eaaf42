// Package patternstore holds the vector-index backends queried by retrieval.
//
// Every backend honours the same contract: Query returns at most topK patterns
// matching the metadata filters, ordered by descending cosine similarity, with
// Pattern.Score set. An unreachable backend returns an error wrapping ErrUnavailable.
package patternstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// Filter keys understood by every backend.
const (
	FilterKind        = "kind"
	FilterGenre       = "genre"
	FilterInstruments = "instruments" // comma-separated; any overlap matches
)

// ErrUnavailable marks a backend that cannot be reached or read.
var ErrUnavailable = errors.New("pattern store unavailable")

// Store is the vector index contract.
type Store interface {
	Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]models.Pattern, error)
	Upsert(ctx context.Context, patterns ...models.Pattern) error
	Count(ctx context.Context) (int, error)
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// matchesFilters applies the metadata filters to a pattern.
func matchesFilters(p models.Pattern, filters map[string]string) bool {
	if kind, ok := filters[FilterKind]; ok && kind != "" && string(p.Kind) != kind {
		return false
	}
	if genre, ok := filters[FilterGenre]; ok && genre != "" && !strings.EqualFold(p.Genre, genre) {
		return false
	}
	if raw, ok := filters[FilterInstruments]; ok && raw != "" {
		if !overlaps(p.Instruments, strings.Split(raw, ",")) {
			return false
		}
	}
	return true
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		w = strings.TrimSpace(w)
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// rank scores candidates against the query, sorts them, and keeps topK.
func rank(candidates []models.Pattern, embedding []float32, topK int) []models.Pattern {
	for i := range candidates {
		candidates[i].Score = CosineSimilarity(embedding, candidates[i].Embedding)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}
