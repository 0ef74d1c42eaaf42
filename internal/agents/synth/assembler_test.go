package synth

import (
	"context"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(pitch int, start, dur float64, vel int) models.NoteEvent {
	return models.NoteEvent{Pitch: pitch, StartBeats: start, DurationBeats: dur, Velocity: vel}
}

func TestAssemble_OrdersByChannelAndSkipsEmpty(t *testing.T) {
	tl := NewAssembler(0).Assemble([]models.Track{
		{Name: "Drums", Channel: models.ChannelDrums, IsDrum: true, Notes: []models.NoteEvent{note(36, 0, 0.25, 100)}},
		{Name: "Empty", Channel: 3},
		{Name: "Melody", Channel: models.ChannelMelody, Notes: []models.NoteEvent{note(60, 0, 1, 90)}},
		{Name: "Chords", Channel: models.ChannelChords, Notes: []models.NoteEvent{note(48, 0, 4, 64)}},
	})

	require.Len(t, tl.Tracks, 3)
	assert.Equal(t, []string{"Melody", "Chords", "Drums"}, []string{tl.Tracks[0].Name, tl.Tracks[1].Name, tl.Tracks[2].Name})
	assert.Equal(t, DefaultGridBeats, tl.GridBeats)
	assert.Equal(t, 4.0, tl.TotalBeats)
}

func TestAssemble_QuantizesAndClamps(t *testing.T) {
	tl := NewAssembler(0.25).Assemble([]models.Track{{
		Name:    "Lead",
		Channel: 2,
		Notes: []models.NoteEvent{
			note(140, 1.13, 0.4, 200),
			note(-3, 0.01, 0.05, 0),
		},
	}})

	require.Len(t, tl.Tracks, 1)
	notes := tl.Tracks[0].Notes
	require.Len(t, notes, 2)

	// sorted by start after snapping
	assert.Equal(t, 0.0, notes[0].StartBeats)
	assert.Equal(t, 0.25, notes[0].DurationBeats)
	assert.Equal(t, 0, notes[0].Pitch)
	assert.Equal(t, 1, notes[0].Velocity)

	assert.Equal(t, 1.25, notes[1].StartBeats)
	assert.Equal(t, 0.25, notes[1].DurationBeats)
	assert.Equal(t, 127, notes[1].Pitch)
	assert.Equal(t, 127, notes[1].Velocity)
	assert.Equal(t, 2, notes[1].Channel)
}

func TestAssembler_Generate(t *testing.T) {
	params := models.RequestParams{Tempo: 100, Duration: 1, TimeSignature: "3/4"}
	req, err := models.NewMusicalRequest(params)
	require.NoError(t, err)

	gctx := models.NewGenerationContext("run-test", models.RequestInput{Params: &params})
	gctx.Request = &req
	gctx.Melody = &models.Track{Name: "Motif", Notes: []models.NoteEvent{note(60, 0, 1, 90)}}
	gctx.Coverage = &models.CoverageReport{Melody: models.Track{Name: "Melody", Notes: []models.NoteEvent{note(60, 0, 1, 90), note(62, 99, 1, 90)}}}
	gctx.Chords = &models.ChordSection{Track: models.Track{Name: "Chords", Channel: models.ChannelChords, Notes: []models.NoteEvent{note(48, 0, 3, 64)}}}
	gctx.Vocals = &models.VocalSection{Track: models.Track{Name: "Vocals", Channel: models.ChannelVocals, Notes: []models.NoteEvent{note(64, 0, 1, 80)}}}

	out, err := NewAssembler(0).Generate(context.Background(), gctx)
	require.NoError(t, err)

	tl := out.(models.SynthSection).Timeline
	assert.Equal(t, 100, tl.Tempo)
	assert.Equal(t, 3, tl.BeatsPerBar)
	assert.Equal(t, 100.0, tl.TotalBeats)
	require.Len(t, tl.Tracks, 3)
	assert.Equal(t, "Melody", tl.Tracks[0].Name)
	assert.Len(t, tl.Tracks[0].Notes, 2)
	assert.Equal(t, "Vocals", tl.Tracks[2].Name)
}

func TestAssembler_GenerateNeedsMelody(t *testing.T) {
	params := models.RequestParams{}
	req, err := models.NewMusicalRequest(params)
	require.NoError(t, err)
	gctx := models.NewGenerationContext("run-test", models.RequestInput{Params: &params})
	gctx.Request = &req

	_, err = NewAssembler(0).Generate(context.Background(), gctx)
	assert.Error(t, err)
}
