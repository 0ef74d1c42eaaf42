package patternstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixturePatterns() []models.Pattern {
	return []models.Pattern{
		{ID: "jazz-prog-1", Kind: models.KindChordProgression, Genre: "jazz", Instruments: []string{"piano"}, Embedding: []float32{1, 0, 0}, Data: models.PatternData{Chords: []string{"Dm7", "G7", "Cmaj7"}}},
		{ID: "jazz-prog-2", Kind: models.KindChordProgression, Genre: "jazz", Instruments: []string{"guitar"}, Embedding: []float32{0.8, 0.2, 0}},
		{ID: "rock-prog-1", Kind: models.KindChordProgression, Genre: "rock", Instruments: []string{"guitar"}, Embedding: []float32{0.9, 0.1, 0}},
		{ID: "jazz-mel-1", Kind: models.KindMelodicPhrase, Genre: "jazz", Instruments: []string{"saxophone", "piano"}, Embedding: []float32{0, 1, 0}},
		{ID: "pop-seg-1", Kind: models.KindSegment, Genre: "pop", Instruments: []string{"bass"}, Embedding: []float32{0, 0, 1}},
	}
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_QueryFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Upsert(ctx, fixturePatterns()...))

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, count)

			results, err := store.Query(ctx, []float32{1, 0, 0}, 10, map[string]string{
				FilterKind:  string(models.KindChordProgression),
				FilterGenre: "jazz",
			})
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "jazz-prog-1", results[0].ID)
			assert.Equal(t, "jazz-prog-2", results[1].ID)
			assert.InDelta(t, 1.0, results[0].Score, 1e-9)
			assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
			assert.Equal(t, []string{"Dm7", "G7", "Cmaj7"}, results[0].Data.Chords)

			results, err = store.Query(ctx, []float32{1, 0, 0}, 10, map[string]string{
				FilterKind:        string(models.KindChordProgression),
				FilterGenre:       "jazz",
				FilterInstruments: "piano,bass",
			})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "jazz-prog-1", results[0].ID)

			results, err = store.Query(ctx, []float32{1, 0, 0}, 2, map[string]string{
				FilterKind: string(models.KindChordProgression),
			})
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "jazz-prog-1", results[0].ID)
			assert.Equal(t, "rock-prog-1", results[1].ID)
		})
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			p := fixturePatterns()[0]
			require.NoError(t, store.Upsert(ctx, p))
			p.Genre = "blues"
			require.NoError(t, store.Upsert(ctx, p))

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			results, err := store.Query(ctx, p.Embedding, 5, map[string]string{FilterGenre: "blues"})
			require.NoError(t, err)
			require.Len(t, results, 1)
		})
	}
}

func TestStore_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			results, err := store.Query(ctx, []float32{1, 0}, 5, nil)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestSQLiteStore_OpenFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("disk on fire")
	}

	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestMemoryStore_CanceledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Query(ctx, []float32{1}, 1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamps to zero", []float32{1, 0}, []float32{-1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("chroma", "", nil)
	require.Error(t, err)

	_, err = Open(BackendPostgres, "", nil)
	require.Error(t, err)

	s, err := Open(BackendMemory, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
