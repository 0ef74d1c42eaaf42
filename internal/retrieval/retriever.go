// Package retrieval turns a musical request into a ranked set of reference
// patterns, relaxing metadata filters tier by tier until every requested kind
// has enough results.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/Conceptual-Machines/magda-composer/internal/retry"
)

const (
	DefaultTopK       = 8
	DefaultMinPerKind = 3
)

// ErrUnavailable reports that the embedding service or the store could not be
// used and built-in patterns were served instead. It is never fatal.
var ErrUnavailable = errors.New("pattern retrieval unavailable")

// Embedder produces the query vector. *llm.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes retrieval.
type Options struct {
	TopK       int          // patterns kept per kind
	MinPerKind int          // per-kind count that stops escalation
	Policy     retry.Policy // applied to each store query
}

func (o Options) normalized() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinPerKind <= 0 {
		o.MinPerKind = DefaultMinPerKind
	}
	if o.MinPerKind > o.TopK {
		o.MinPerKind = o.TopK
	}
	return o
}

// Retriever implements tiered pattern retrieval.
type Retriever struct {
	store    patternstore.Store
	embedder Embedder
	opts     Options
}

// New creates a retriever. store and embedder may be nil, in which case every
// retrieval is served from the built-in set.
func New(store patternstore.Store, embedder Embedder, opts Options) *Retriever {
	return &Retriever{store: store, embedder: embedder, opts: opts.normalized()}
}

// tierFilters returns the metadata filters for one tier and kind.
func tierFilters(tier int, req models.MusicalRequest, kind models.PatternKind) map[string]string {
	filters := map[string]string{patternstore.FilterKind: string(kind)}
	if tier <= models.TierGenre {
		filters[patternstore.FilterGenre] = req.Genre
	}
	if tier == models.TierExact {
		filters[patternstore.FilterInstruments] = strings.Join(req.Instruments, ",")
	}
	return filters
}

// Retrieve returns a non-empty PatternSet for req, sorted by descending score
// within each kind. A non-nil error wraps ErrUnavailable and only reports that
// the result is degraded; the returned set is always usable.
//
// Tier is the last index tier queried, or TierBuiltin when nothing came from
// the index. When built-ins only top up kinds the index had nothing for, Tier
// keeps the index tier and IsFallback is set; check IsFallback, not Tier
// alone, to judge whether every kind was served from the index.
func (r *Retriever) Retrieve(ctx context.Context, req models.MusicalRequest, kinds []models.PatternKind) (models.PatternSet, error) {
	kinds = normalizeKinds(kinds)

	if r.store == nil || r.embedder == nil {
		return builtinSet(kinds), fmt.Errorf("%w: no pattern store or embedder configured", ErrUnavailable)
	}

	vec, err := r.embedder.Embed(ctx, QueryText(req))
	if err != nil {
		// No vector means no similarity query; skip straight to built-ins
		return builtinSet(kinds), fmt.Errorf("%w: embed query: %w", ErrUnavailable, err)
	}

	merged := make(map[models.PatternKind]map[string]models.Pattern, len(kinds))
	for _, kind := range kinds {
		merged[kind] = make(map[string]models.Pattern)
	}

	reached := models.TierExact
	var storeErr error
	for tier := models.TierExact; tier <= models.TierGeneric; tier++ {
		reached = tier
		for _, kind := range kinds {
			if len(merged[kind]) >= r.opts.MinPerKind {
				continue
			}
			found, err := r.query(ctx, vec, tierFilters(tier, req, kind))
			if err != nil {
				storeErr = err
				break
			}
			for _, p := range found {
				if existing, ok := merged[kind][p.ID]; !ok || p.Score > existing.Score {
					merged[kind][p.ID] = p
				}
			}
		}
		if storeErr != nil || satisfied(merged, r.opts.MinPerKind) {
			break
		}
	}

	set := models.PatternSet{Tier: reached, IsFallback: reached >= models.TierGeneric}
	for _, kind := range kinds {
		set.Patterns = append(set.Patterns, topK(merged[kind], r.opts.TopK)...)
	}

	if set.Len() == 0 {
		set = builtinSet(kinds)
		if storeErr != nil {
			return set, fmt.Errorf("%w: %w", ErrUnavailable, storeErr)
		}
		return set, nil
	}

	// Kinds the index has nothing for are topped up so every stage gets material
	for _, kind := range kinds {
		if len(merged[kind]) == 0 {
			set.Patterns = append(set.Patterns, Builtin(kind)...)
			set.IsFallback = true
		}
	}
	models.SortPatterns(set.Patterns)

	if storeErr != nil {
		set.IsFallback = true
		return set, fmt.Errorf("%w: %w", ErrUnavailable, storeErr)
	}
	return set, nil
}

// query runs one store query under the retry policy.
func (r *Retriever) query(ctx context.Context, vec []float32, filters map[string]string) ([]models.Pattern, error) {
	return retry.Value(ctx, r.opts.Policy, "pattern store query", func(ctx context.Context) ([]models.Pattern, error) {
		return r.store.Query(ctx, vec, r.opts.TopK, filters)
	})
}

func satisfied(merged map[models.PatternKind]map[string]models.Pattern, minPerKind int) bool {
	for _, byID := range merged {
		if len(byID) < minPerKind {
			return false
		}
	}
	return true
}

func topK(byID map[string]models.Pattern, k int) []models.Pattern {
	out := make([]models.Pattern, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func builtinSet(kinds []models.PatternKind) models.PatternSet {
	set := models.PatternSet{IsFallback: true, Tier: models.TierBuiltin}
	for _, kind := range kinds {
		set.Patterns = append(set.Patterns, Builtin(kind)...)
	}
	return set
}

func normalizeKinds(kinds []models.PatternKind) []models.PatternKind {
	if len(kinds) == 0 {
		return models.AllPatternKinds()
	}
	seen := make(map[models.PatternKind]bool)
	var out []models.PatternKind
	for _, k := range kinds {
		if k.Valid() && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return models.AllPatternKinds()
	}
	return out
}

// LogResult logs the tier and per-kind counts of a retrieval.
func LogResult(runID string, set models.PatternSet) {
	counts := make(map[string]int)
	for kind, n := range set.CountByKind() {
		counts[string(kind)] = n
	}
	logger.LogRetrieval(runID, set.Tier, set.IsFallback, counts)
}
