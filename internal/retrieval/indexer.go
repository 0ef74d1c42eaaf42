package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
)

const indexBatchSize = 32

// Indexer describes, embeds and stores patterns.
type Indexer struct {
	store    patternstore.Store
	embedder Embedder
}

// NewIndexer creates an indexer writing to store.
func NewIndexer(store patternstore.Store, embedder Embedder) *Indexer {
	return &Indexer{store: store, embedder: embedder}
}

// Index embeds every pattern that has no embedding yet and upserts all of them.
// It returns the number of patterns written.
func (ix *Indexer) Index(ctx context.Context, patterns []models.Pattern) (int, error) {
	if ix.store == nil {
		return 0, fmt.Errorf("index: %w", patternstore.ErrUnavailable)
	}

	batch := make([]models.Pattern, 0, indexBatchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ix.store.Upsert(ctx, batch...); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, p := range patterns {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		p, err := prepare(p, i)
		if err != nil {
			return written, err
		}
		if len(p.Embedding) == 0 {
			if ix.embedder == nil {
				return written, fmt.Errorf("pattern %s has no embedding and no embedder is configured", p.ID)
			}
			vec, err := ix.embedder.Embed(ctx, DescribePattern(p))
			if err != nil {
				return written, fmt.Errorf("embed pattern %s: %w", p.ID, err)
			}
			p.Embedding = vec
		}

		batch = append(batch, p)
		if len(batch) == indexBatchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	logger.Info("Indexed patterns", logger.Fields{"count": written})
	return written, nil
}

// prepare validates a pattern and fills its id and normalized tags.
func prepare(p models.Pattern, index int) (models.Pattern, error) {
	if !p.Kind.Valid() {
		return p, fmt.Errorf("pattern %d: invalid kind %q", index, p.Kind)
	}
	p.Genre = strings.ToLower(strings.TrimSpace(p.Genre))
	insts := make([]string, 0, len(p.Instruments))
	for _, inst := range p.Instruments {
		insts = append(insts, strings.ToLower(strings.TrimSpace(inst)))
	}
	p.Instruments = insts
	if p.ID == "" {
		genre := p.Genre
		if genre == "" {
			genre = "generic"
		}
		p.ID = fmt.Sprintf("%s_%s_%d", genre, p.Kind, index)
	}
	if p.Source == "" {
		p.Source = "indexed"
	}
	p.Score = 0
	return p, nil
}
