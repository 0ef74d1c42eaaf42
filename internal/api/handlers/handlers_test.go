package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockComposer struct {
	RunFunc func(ctx context.Context, input models.RequestInput) (*pipeline.RunResult, error)
}

func (m *mockComposer) Run(ctx context.Context, input models.RequestInput) (*pipeline.RunResult, error) {
	return m.RunFunc(ctx, input)
}

type mockRunStore struct {
	runs []*models.CompositionRun
}

func (m *mockRunStore) SaveRun(_ context.Context, run *models.CompositionRun) error {
	m.runs = append(m.runs, run)
	return nil
}

type mockIndexer struct {
	got []models.Pattern
	err error
}

func (m *mockIndexer) Index(_ context.Context, patterns []models.Pattern) (int, error) {
	m.got = patterns
	if m.err != nil {
		return 0, m.err
	}
	return len(patterns), nil
}

func doJSON(t *testing.T, h gin.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/", h)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCompose_Success(t *testing.T) {
	var got models.RequestInput
	composer := &mockComposer{RunFunc: func(_ context.Context, input models.RequestInput) (*pipeline.RunResult, error) {
		got = input
		return &pipeline.RunResult{
			RunID:    "run-1",
			State:    pipeline.StateDone,
			Warnings: []string{"retrieval: offline"},
			Duration: 1500 * time.Millisecond,
			Patterns: &models.PatternSet{Tier: 3, IsFallback: true},
			Timeline: &models.Timeline{TotalBeats: 240, Tracks: []models.Track{
				{Name: "Melody", Notes: make([]models.NoteEvent, 4)},
				{Name: "Drums", Channel: 9, IsDrum: true, Notes: make([]models.NoteEvent, 2)},
			}},
			Export: &models.ExportResult{Artifacts: []models.Artifact{{Kind: "midi", Path: "output/run-1.mid"}}},
		}, nil
	}}

	w := doJSON(t, NewComposeHandler(composer, nil, 0).Compose, ComposeRequest{Description: "a jazz tune"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a jazz tune", got.Description)

	var resp ComposeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 3, resp.Tier)
	assert.True(t, resp.IsFallback)
	assert.Equal(t, 240.0, resp.TotalBeats)
	require.Len(t, resp.Tracks, 2)
	assert.Equal(t, 4, resp.Tracks[0].Notes)
	assert.Equal(t, "output/run-1.mid", resp.MIDIPath)
	assert.Equal(t, []string{"retrieval: offline"}, resp.Warnings)
	assert.Equal(t, int64(1500), resp.DurationMS)
}

func TestCompose_StageFailure(t *testing.T) {
	composer := &mockComposer{RunFunc: func(context.Context, models.RequestInput) (*pipeline.RunResult, error) {
		result := &pipeline.RunResult{
			RunID:       "run-2",
			State:       pipeline.StateFailed,
			FailedState: pipeline.StateValidateCoverage,
			Cause:       "melody still short",
		}
		return result, &pipeline.StageError{State: pipeline.StateValidateCoverage, Kind: pipeline.ErrValidationFailure, Cause: errors.New("melody still short")}
	}}
	runs := &mockRunStore{}

	w := doJSON(t, NewComposeHandler(composer, runs, 0).Compose, ComposeRequest{Description: "x"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ComposeFailure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.StateValidateCoverage, resp.FailedState)
	assert.Equal(t, "melody still short", resp.Cause)
	assert.Equal(t, "validation failure", resp.Kind)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "failed", runs.runs[0].Status)
	assert.Equal(t, "ValidateCoverage", runs.runs[0].FailedState)
}

func TestCompose_UnexpectedError(t *testing.T) {
	composer := &mockComposer{RunFunc: func(context.Context, models.RequestInput) (*pipeline.RunResult, error) {
		return nil, errors.New("boom")
	}}

	w := doJSON(t, NewComposeHandler(composer, nil, 0).Compose, ComposeRequest{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCompose_BadJSON(t *testing.T) {
	router := gin.New()
	router.POST("/", NewComposeHandler(&mockComposer{}, nil, 0).Compose)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatternSearch_BuiltinFallback(t *testing.T) {
	h := NewPatternHandler(retrieval.New(nil, nil, retrieval.Options{}), nil)

	w := doJSON(t, h.Search, SearchRequest{
		Params: models.RequestParams{Genre: "jazz"},
		Kinds:  []string{"chord_progression"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.TierBuiltin, resp.Tier)
	assert.True(t, resp.IsFallback)
	assert.NotEmpty(t, resp.Warning)
	require.NotEmpty(t, resp.Patterns)
	for _, p := range resp.Patterns {
		assert.Equal(t, models.KindChordProgression, p.Kind)
	}
}

func TestPatternSearch_UnknownKind(t *testing.T) {
	h := NewPatternHandler(retrieval.New(nil, nil, retrieval.Options{}), nil)
	w := doJSON(t, h.Search, SearchRequest{Kinds: []string{"drum_loop"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatternIndex(t *testing.T) {
	indexer := &mockIndexer{}
	h := NewPatternHandler(nil, indexer)

	w := doJSON(t, h.Index, IndexRequest{Patterns: []models.Pattern{
		{ID: "p1", Kind: models.KindMelodicPhrase, Genre: "pop"},
	}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"indexed":1}`, w.Body.String())
	assert.Len(t, indexer.got, 1)

	w = doJSON(t, h.Index, IndexRequest{Patterns: []models.Pattern{{ID: "p2", Kind: "riff"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	indexer.err = errors.New("store down")
	w = doJSON(t, h.Index, IndexRequest{Patterns: []models.Pattern{{ID: "p3", Kind: models.KindSegment}}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPatternIndex_NotConfigured(t *testing.T) {
	w := doJSON(t, NewPatternHandler(nil, nil).Index, IndexRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthCheck(t *testing.T) {
	store := patternstore.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), models.Pattern{ID: "p1", Kind: models.KindSegment}))

	router := gin.New()
	router.GET("/health", NewHealthHandler(nil, store).HealthCheck)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disabled", body["database"])
	assert.Equal(t, float64(1), body["patterns"].(map[string]any)["count"])
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5.00s", formatUptime(5*time.Second))
	assert.Equal(t, "2m3.00s", formatUptime(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h0m1.00s", formatUptime(time.Hour+time.Second))
}

func TestGetMetrics(t *testing.T) {
	store := patternstore.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(),
		models.Pattern{ID: "a", Kind: models.KindSegment},
		models.Pattern{ID: "b", Kind: models.KindSegment},
	))

	router := gin.New()
	router.GET("/api/metrics", NewMetricsHandler("1.2.3", "none", "memory", store).GetMetrics)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, 2, resp.Patterns.Count)
	assert.Equal(t, pipeline.StateGenerateVocals, resp.Pipeline.Conditional)
	assert.Contains(t, resp.Pipeline.States, pipeline.StateValidateCoverage)
}
