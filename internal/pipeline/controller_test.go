package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/export"
	"github.com/Conceptual-Machines/magda-composer/internal/coverage"
	"github.com/Conceptual-Machines/magda-composer/internal/llm/llmtest"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
	"github.com/Conceptual-Machines/magda-composer/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStages(t *testing.T, outputDir string) map[State]Stage {
	t.Helper()
	client := llmtest.Client(nil, &llmtest.Embedder{Dim: 8})
	return DefaultStages(Deps{
		Client:    client,
		Retriever: retrieval.New(patternstore.NewMemoryStore(), client, retrieval.Options{}),
		Renderers: []export.Renderer{export.NewSMFRenderer(outputDir)},
	})
}

func newTestController(t *testing.T, stages map[State]Stage) *Controller {
	t.Helper()
	c, err := NewController(stages, WithRunIDs(func() string { return "run-test" }))
	require.NoError(t, err)
	return c
}

func paramsInput(p models.RequestParams) models.RequestInput {
	return models.RequestInput{Params: &p}
}

// counting wraps a stage and counts its invocations.
func counting(s Stage, n *int32) Stage {
	return StageFunc(func(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
		atomic.AddInt32(n, 1)
		return s.Generate(ctx, gctx)
	})
}

func TestController_JazzWithEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, testStages(t, dir))

	result, err := c.Run(context.Background(), paramsInput(models.RequestParams{
		Genre:       "jazz",
		Duration:    2,
		Tempo:       120,
		Instruments: []string{"piano", "bass"},
	}))
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	require.NotNil(t, result.Patterns)
	assert.Equal(t, models.TierBuiltin, result.Patterns.Tier)
	assert.True(t, result.Patterns.IsFallback)
	assert.NotZero(t, result.Patterns.Len())

	require.NotNil(t, result.Coverage)
	assert.GreaterOrEqual(t, result.Coverage.FinalBeats, 240.0)
	assert.GreaterOrEqual(t, result.Coverage.Melody.EndBeats(), 240.0)

	assert.NotContains(t, result.Visited, StateGenerateVocals)
	assert.Equal(t, StateExport, result.Visited[len(result.Visited)-1])

	require.NotNil(t, result.Timeline)
	assert.GreaterOrEqual(t, len(result.Timeline.Tracks), 3)

	path := result.MIDIPath()
	require.NotEmpty(t, path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestController_VocalBranchExclusivity(t *testing.T) {
	for _, vocals := range []bool{false, true} {
		t.Run(fmt.Sprintf("vocals=%t", vocals), func(t *testing.T) {
			stages := testStages(t, t.TempDir())
			var calls int32
			stages[StateGenerateVocals] = counting(stages[StateGenerateVocals], &calls)

			result, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{
				Genre:    "pop",
				Duration: 0.5,
				Vocals:   vocals,
				Lyrics:   "[Verse]\nhold on to the night",
			}))
			require.NoError(t, err)
			assert.True(t, result.Succeeded())

			if vocals {
				assert.Equal(t, int32(1), calls)
				assert.Contains(t, result.Visited, StateGenerateVocals)
			} else {
				assert.Zero(t, calls)
				assert.NotContains(t, result.Visited, StateGenerateVocals)
			}
		})
	}
}

func TestController_StageFailure(t *testing.T) {
	dir := t.TempDir()
	stages := testStages(t, dir)
	var later int32
	stages[StateGenerateChords] = StageFunc(func(context.Context, *models.GenerationContext) (models.SectionOutput, error) {
		return nil, errors.New("no chords today")
	})
	stages[StateGenerateMelody] = counting(stages[StateGenerateMelody], &later)

	result, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{}))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrStageFailure)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateGenerateChords, stageErr.State)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StateGenerateChords, result.FailedState)
	assert.Equal(t, "no chords today", result.Cause)
	assert.Zero(t, later)
	assert.Empty(t, result.MIDIPath())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestController_RejectsForeignSlot(t *testing.T) {
	stages := testStages(t, t.TempDir())
	stages[StateGenerateChords] = StageFunc(func(context.Context, *models.GenerationContext) (models.SectionOutput, error) {
		return models.MelodySection{Track: models.Track{Notes: []models.NoteEvent{{Pitch: 60, DurationBeats: 1}}}}, nil
	})

	result, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{}))
	require.Error(t, err)
	assert.Equal(t, StateGenerateChords, result.FailedState)
	assert.Contains(t, result.Cause, "owns")
}

func TestController_NilOutput(t *testing.T) {
	stages := testStages(t, t.TempDir())
	stages[StatePlanStructure] = StageFunc(func(context.Context, *models.GenerationContext) (models.SectionOutput, error) {
		return nil, nil
	})

	result, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{}))
	require.Error(t, err)
	assert.Equal(t, StatePlanStructure, result.FailedState)
}

func TestController_TimeoutClassification(t *testing.T) {
	stages := testStages(t, t.TempDir())
	stages[StateParseInput] = StageFunc(func(context.Context, *models.GenerationContext) (models.SectionOutput, error) {
		return nil, fmt.Errorf("parse_request: %w", retry.ErrTimeout)
	})

	_, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{}))
	assert.ErrorIs(t, err, ErrExternalTimeout)
	assert.ErrorIs(t, err, ErrStageFailure)
}

func TestController_NoInput(t *testing.T) {
	result, err := newTestController(t, testStages(t, t.TempDir())).Run(context.Background(), models.RequestInput{})
	require.Error(t, err)
	assert.Equal(t, StateParseInput, result.FailedState)
}

func TestController_CancelBetweenStates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stages := testStages(t, t.TempDir())
	plan := stages[StatePlanStructure]
	stages[StatePlanStructure] = StageFunc(func(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
		out, err := plan.Generate(ctx, gctx)
		cancel()
		return out, err
	})
	var chords int32
	stages[StateGenerateChords] = counting(stages[StateGenerateChords], &chords)

	result, err := newTestController(t, stages).Run(ctx, paramsInput(models.RequestParams{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateGenerateChords, result.FailedState)
	assert.Zero(t, chords)
}

func TestController_EmptyMelodyIsSubstituted(t *testing.T) {
	stages := testStages(t, t.TempDir())
	stages[StateGenerateMelody] = StageFunc(func(context.Context, *models.GenerationContext) (models.SectionOutput, error) {
		return models.MelodySection{Track: models.Track{Name: "Melody"}}, nil
	})

	result, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{Duration: 0.5}))
	require.NoError(t, err)

	require.NotNil(t, result.Coverage)
	assert.True(t, result.Coverage.Substituted)
	assert.GreaterOrEqual(t, result.Coverage.FinalBeats, 60.0)
	assert.Contains(t, result.Warnings, "coverage: melody was empty, default phrase substituted")
}

func TestController_CollectsWarnings(t *testing.T) {
	stages := testStages(t, t.TempDir())
	stages[StateRetrievePatterns] = NewRetrievalStage(retrieval.New(nil, nil, retrieval.Options{}), nil)

	result, err := newTestController(t, stages).Run(context.Background(), paramsInput(models.RequestParams{Duration: 0.5}))
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "retrieval:")
	assert.Equal(t, models.TierBuiltin, result.Patterns.Tier)
}

func TestNewController_MissingStage(t *testing.T) {
	stages := testStages(t, t.TempDir())
	delete(stages, StateSynthesize)

	_, err := NewController(stages)
	assert.Error(t, err)
}

func TestCoverageStage_UsesStructureEnd(t *testing.T) {
	req, err := models.NewMusicalRequest(models.RequestParams{Tempo: 100, Duration: 0.3})
	require.NoError(t, err)

	gctx := models.NewGenerationContext("run", models.RequestInput{})
	gctx.Request = &req
	gctx.Structure = []models.CompositionSection{{Name: "verse", StartBeats: 0, EndBeats: 32}}
	gctx.Melody = &models.Track{Name: "Melody", Notes: []models.NoteEvent{{Pitch: 60, DurationBeats: 8, Velocity: 90}}}

	out, err := NewCoverageStage(coverage.Options{}).Generate(context.Background(), gctx)
	require.NoError(t, err)

	report := out.(models.CoverageSection).Report
	assert.Equal(t, 32.0, report.TargetBeats)
	assert.Equal(t, 3, report.Repeats)
	assert.Equal(t, "Melody", report.Melody.Name)
	assert.Len(t, gctx.Melody.Notes, 1, "input melody untouched")
}
