package melody

import (
	"context"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/arranger"
	"github.com/Conceptual-Machines/magda-composer/internal/coverage"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, params models.RequestParams) *models.GenerationContext {
	t.Helper()
	req, err := models.NewMusicalRequest(params)
	require.NoError(t, err)
	gctx := models.NewGenerationContext("run-test", models.RequestInput{Params: &params})
	gctx.Request = &req
	return gctx
}

func TestMelodyAgent_MotifLength(t *testing.T) {
	tests := []struct {
		name      string
		params    models.RequestParams
		motifBars int
		wantBeats float64
	}{
		{name: "capped at eight bars", params: models.RequestParams{Duration: 2, Tempo: 120}, wantBeats: 32},
		{name: "short song", params: models.RequestParams{Duration: 0.1, Tempo: 120}, wantBeats: 12},
		{name: "custom cap", params: models.RequestParams{Duration: 2}, motifBars: 2, wantBeats: 8},
		{name: "waltz", params: models.RequestParams{Duration: 2, TimeSignature: "3/4"}, wantBeats: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gctx := newTestContext(t, tt.params)

			out, err := NewMelodyAgent(tt.motifBars).Generate(context.Background(), gctx)
			require.NoError(t, err)

			section := out.(models.MelodySection)
			assert.Equal(t, models.SlotMelody, section.Slot())
			assert.Equal(t, tt.wantBeats, coverage.Duration(section.Track.Notes))
			assert.Equal(t, models.ChannelMelody, section.Track.Channel)
			assert.Equal(t, models.ProgramMelody, section.Track.Program)
		})
	}
}

func TestMelodyAgent_UsesPhrasePattern(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{Key: "C Major"})
	gctx.Patterns = &models.PatternSet{Patterns: []models.Pattern{{
		ID:   "phrase-1",
		Kind: models.KindMelodicPhrase,
		Data: models.PatternData{StartPitch: 64, Intervals: []int{3, -3}, Rhythm: []float64{2, 2}},
	}}}

	out, err := NewMelodyAgent(1).Generate(context.Background(), gctx)
	require.NoError(t, err)

	notes := out.(models.MelodySection).Track.Notes
	require.Len(t, notes, 2)
	assert.Equal(t, 64, notes[0].Pitch)
	assert.Equal(t, 67, notes[1].Pitch)
	assert.Equal(t, 2.0, notes[1].StartBeats)
}

func TestMelodyAgent_PitchesInKey(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{Key: "E Minor"})
	key, err := arranger.ParseKey("E Minor")
	require.NoError(t, err)

	out, err := NewMelodyAgent(0).Generate(context.Background(), gctx)
	require.NoError(t, err)

	for _, n := range out.(models.MelodySection).Track.Notes {
		assert.True(t, key.InScale(n.Pitch), "pitch %d", n.Pitch)
		assert.GreaterOrEqual(t, n.Pitch, lowestPitch)
		assert.LessOrEqual(t, n.Pitch, highestPitch)
	}
}

func TestMelodyAgent_VelocityFollowsEnergy(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{})
	gctx.Structure = []models.CompositionSection{
		{Name: "verse", StartBeats: 0, EndBeats: 16, Energy: 5},
		{Name: "chorus", StartBeats: 16, EndBeats: 32, Energy: 8},
	}

	out, err := NewMelodyAgent(0).Generate(context.Background(), gctx)
	require.NoError(t, err)

	notes := out.(models.MelodySection).Track.Notes
	assert.Equal(t, 85, notes[0].Velocity)
	assert.Equal(t, 100, notes[len(notes)-1].Velocity)
}

func TestMelodyAgent_IgnoresSilentPhrase(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{})
	gctx.Patterns = &models.PatternSet{Patterns: []models.Pattern{{
		Kind: models.KindMelodicPhrase,
		Data: models.PatternData{Rhythm: []float64{0, -1}},
	}}}

	out, err := NewMelodyAgent(1).Generate(context.Background(), gctx)
	require.NoError(t, err)
	assert.Equal(t, 4.0, coverage.Duration(out.(models.MelodySection).Track.Notes))
}

func TestMelodyAgent_RequiresRequest(t *testing.T) {
	gctx := models.NewGenerationContext("run-test", models.RequestInput{})
	_, err := NewMelodyAgent(0).Generate(context.Background(), gctx)
	assert.Error(t, err)
}
