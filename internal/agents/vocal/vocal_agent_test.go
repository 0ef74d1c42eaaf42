package vocal

import (
	"context"
	"errors"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/arranger"
	"github.com/Conceptual-Machines/magda-composer/internal/llm/llmtest"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, params models.RequestParams) *models.GenerationContext {
	t.Helper()
	params.Vocals = true
	req, err := models.NewMusicalRequest(params)
	require.NoError(t, err)

	gctx := models.NewGenerationContext("run-test", models.RequestInput{Params: &params})
	gctx.Request = &req
	gctx.Structure = []models.CompositionSection{
		{Name: "verse", StartBeats: 0, EndBeats: req.TotalBeats() / 2, Energy: 5},
		{Name: "chorus", StartBeats: req.TotalBeats() / 2, EndBeats: req.TotalBeats(), Energy: 8},
	}
	return gctx
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("[Verse 1]\nHello, world!\n[Chorus]\n  don't stop -- now ")
	assert.Equal(t, []string{"Hello", "world", "don't", "stop", "now"}, tokens)
	assert.Empty(t, Tokenize("[Intro]\n\n"))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, []string{"la", "da", "na", "oh", "yeah", "la"}, Placeholder(6))
	assert.Empty(t, Placeholder(0))
}

func TestVocalAgent_RequestLyrics(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{Key: "D Major", Lyrics: "[Verse]\nsing me a song tonight"})

	out, err := NewVocalAgent(nil).Generate(context.Background(), gctx)
	require.NoError(t, err)

	section, ok := out.(models.VocalSection)
	require.True(t, ok)
	assert.Equal(t, models.SlotVocals, section.Slot())
	assert.Empty(t, section.Warnings())

	require.Len(t, section.Track.Notes, 5)
	require.Len(t, section.Lyrics, 5)
	assert.Equal(t, "sing", section.Lyrics[0].Text)
	assert.Equal(t, models.ProgramVocals, section.Track.Program)
	assert.Equal(t, models.ChannelVocals, section.Track.Channel)

	key, err := arranger.ParseKey("D Major")
	require.NoError(t, err)
	for i, tok := range section.Lyrics {
		assert.Equal(t, i, tok.NoteIndex)
		note := section.Track.Notes[i]
		assert.True(t, key.InScale(note.Pitch), "pitch %d", note.Pitch)
		assert.Equal(t, float64(i), note.StartBeats)
	}
	assert.Equal(t, 62, section.Track.Notes[0].Pitch)
}

func TestVocalAgent_GeneratedLyrics(t *testing.T) {
	provider := llmtest.RespondJSON(map[string]any{
		"sections": []map[string]any{
			{"name": "verse", "lines": []string{"city lights are calling"}},
			{"name": "chorus", "lines": []string{"run, run away!"}},
		},
	})
	gctx := newTestContext(t, models.RequestParams{})

	out, err := NewVocalAgent(llmtest.Client(provider, nil)).Generate(context.Background(), gctx)
	require.NoError(t, err)

	section := out.(models.VocalSection)
	assert.Empty(t, section.Warnings())
	require.Len(t, section.Lyrics, 7)
	assert.Equal(t, "away", section.Lyrics[6].Text)
	require.Len(t, provider.Requests(), 1)
}

func TestVocalAgent_PlaceholderOnFailure(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{Duration: 0.25, Tempo: 128})
	client := llmtest.Client(llmtest.Fail(errors.New("quota")), nil)

	out, err := NewVocalAgent(client).Generate(context.Background(), gctx)
	require.NoError(t, err)

	section := out.(models.VocalSection)
	assert.Len(t, section.Warnings(), 1)
	// 32 beats, one syllable each
	require.Len(t, section.Lyrics, 32)
	assert.Equal(t, "la", section.Lyrics[0].Text)
	assert.Equal(t, "yeah", section.Lyrics[4].Text)
	assert.Greater(t, section.Track.Notes[20].Velocity, section.Track.Notes[0].Velocity)
}

func TestVocalAgent_DropsTokensPastTheEnd(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{Duration: 0.25, Tempo: 128})
	lyrics := ""
	for i := 0; i < 50; i++ {
		lyrics += "word "
	}
	gctx.Request.Lyrics = lyrics

	out, err := NewVocalAgent(nil).Generate(context.Background(), gctx)
	require.NoError(t, err)
	assert.Len(t, out.(models.VocalSection).Lyrics, 32)
}

func TestVocalAgent_NeedsStructure(t *testing.T) {
	gctx := newTestContext(t, models.RequestParams{})
	gctx.Structure = nil

	_, err := NewVocalAgent(nil).Generate(context.Background(), gctx)
	assert.Error(t, err)
}
