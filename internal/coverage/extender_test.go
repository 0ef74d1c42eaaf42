package coverage

import (
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoBarMotif is 8 beats of quarter and half notes.
func twoBarMotif() []models.NoteEvent {
	return []models.NoteEvent{
		{Pitch: 60, StartBeats: 0, DurationBeats: 1, Velocity: 100},
		{Pitch: 62, StartBeats: 1, DurationBeats: 1, Velocity: 100},
		{Pitch: 64, StartBeats: 2, DurationBeats: 2, Velocity: 100},
		{Pitch: 67, StartBeats: 4, DurationBeats: 2, Velocity: 100},
		{Pitch: 65, StartBeats: 6, DurationBeats: 2, Velocity: 100},
	}
}

func TestExtend_EightToThirtyTwo(t *testing.T) {
	motif := twoBarMotif()

	res, err := Extend(motif, 32, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Repeats)
	assert.Len(t, res.Notes, 4*len(motif))
	assert.GreaterOrEqual(t, Duration(res.Notes), 32.0)
	assert.LessOrEqual(t, Duration(res.Notes), 36.0)
	assert.Equal(t, 32.0, res.FinalBeats)
	assert.False(t, res.Truncated)

	// every copy keeps the rhythm of the motif
	for k := 1; k <= 3; k++ {
		for i, n := range motif {
			got := res.Notes[k*len(motif)+i]
			assert.Equal(t, n.StartBeats+float64(8*k), got.StartBeats)
			assert.Equal(t, n.DurationBeats, got.DurationBeats)
		}
	}
}

func TestExtend_NoOpWhenCovered(t *testing.T) {
	tests := []struct {
		name   string
		target float64
	}{
		{"exact match", 8},
		{"far longer than target", 2},
		{"zero target", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			motif := twoBarMotif()
			res, err := Extend(motif, tt.target, Options{})
			require.NoError(t, err)
			assert.Equal(t, motif, res.Notes)
			assert.Equal(t, 0, res.Repeats)
			assert.Equal(t, 8.0, res.FinalBeats)
		})
	}
}

func TestExtend_PrefixPreservedAndInputUntouched(t *testing.T) {
	motif := twoBarMotif()
	snapshot := append([]models.NoteEvent(nil), motif...)

	res, err := Extend(motif, 50, Options{})
	require.NoError(t, err)

	assert.Equal(t, snapshot, motif)
	assert.Equal(t, snapshot, res.Notes[:len(snapshot)])
}

func TestExtend_TruncatesAtBarLine(t *testing.T) {
	motif := twoBarMotif()

	// in 3/4 the first bar line after beat 13 is 15, inside the half note at 14
	res, err := Extend(motif, 13, Options{BeatsPerBar: 3})
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, 1, res.Repeats)
	assert.Equal(t, 15.0, res.FinalBeats)
	end := Duration(res.Notes)
	assert.GreaterOrEqual(t, end, 13.0)
	assert.LessOrEqual(t, end, 16.0)
	last := res.Notes[len(res.Notes)-1]
	assert.Equal(t, 14.0, last.StartBeats)
	assert.Equal(t, 1.0, last.DurationBeats)
	for _, n := range res.Notes {
		assert.LessOrEqual(t, n.EndBeats(), res.FinalBeats)
	}
}

func TestExtend_ClipsNoteCrossingCut(t *testing.T) {
	// one three-bar note; target falls inside the second copy's bar 2
	melody := []models.NoteEvent{{Pitch: 60, StartBeats: 0, DurationBeats: 12, Velocity: 90}}

	res, err := Extend(melody, 14, Options{})
	require.NoError(t, err)

	require.Len(t, res.Notes, 2)
	assert.Equal(t, 12.0, res.Notes[1].StartBeats)
	assert.Equal(t, 4.0, res.Notes[1].DurationBeats)
	assert.Equal(t, 16.0, res.FinalBeats)
}

func TestExtend_StretchesIntoTrailingGap(t *testing.T) {
	// a short note and a late one: the cut lands inside the gap between them
	melody := []models.NoteEvent{
		{Pitch: 60, StartBeats: 0, DurationBeats: 1, Velocity: 90},
		{Pitch: 64, StartBeats: 7, DurationBeats: 1, Velocity: 90},
	}

	res, err := Extend(melody, 10, Options{})
	require.NoError(t, err)

	require.Len(t, res.Notes, 3)
	assert.Equal(t, melody, res.Notes[:2])
	assert.Equal(t, 8.0, res.Notes[2].StartBeats)
	assert.Equal(t, 12.0, res.Notes[2].EndBeats())
	assert.GreaterOrEqual(t, Duration(res.Notes), 10.0)
}

func TestExtend_LeadingRestStillCovers(t *testing.T) {
	// a five-beat motif that is silent until 4.5: the first copy starts past the bar line at 8
	melody := []models.NoteEvent{{Pitch: 60, StartBeats: 4.5, DurationBeats: 0.5, Velocity: 90}}

	res, err := Extend(melody, 5.1, Options{BeatsPerBar: 4})
	require.NoError(t, err)

	require.Len(t, res.Notes, 2)
	assert.Equal(t, melody, res.Notes[:1])
	assert.Equal(t, 9.5, res.Notes[1].StartBeats)
	assert.Equal(t, 1, res.Repeats)
	assert.Equal(t, 12.0, res.FinalBeats)
	assert.GreaterOrEqual(t, Duration(res.Notes), 5.1)
	for _, n := range res.Notes {
		assert.LessOrEqual(t, n.EndBeats(), res.FinalBeats)
	}
}

func TestExtend_RepeatsCountOnlySoundingCopies(t *testing.T) {
	// two copies are planned, but the cut at 12 drops the second (starts at 14.5)
	melody := []models.NoteEvent{{Pitch: 60, StartBeats: 4.5, DurationBeats: 0.5, Velocity: 90}}

	res, err := Extend(melody, 11, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Repeats)
	require.Len(t, res.Notes, 2)
	assert.Equal(t, 12.0, res.Notes[1].EndBeats())
	assert.GreaterOrEqual(t, Duration(res.Notes), 11.0)
}

func TestExtend_VariesEachCopy(t *testing.T) {
	motif := twoBarMotif()

	res, err := Extend(motif, 32, Options{VelocityDecay: 10, MinVelocity: 75})
	require.NoError(t, err)

	n := len(motif)
	assert.Equal(t, 90, res.Notes[n].Velocity)
	assert.Equal(t, 80, res.Notes[2*n].Velocity)
	assert.Equal(t, 75, res.Notes[3*n].Velocity)

	// closing note of each copy is nudged, the rest keep the contour
	assert.Equal(t, 67, res.Notes[2*n-1].Pitch)
	assert.Equal(t, 64, res.Notes[3*n-1].Pitch)
	assert.Equal(t, 66, res.Notes[4*n-1].Pitch)
	assert.Equal(t, motif[0].Pitch, res.Notes[n].Pitch)
}

func TestExtend_QuietNotesNotRaised(t *testing.T) {
	melody := []models.NoteEvent{{Pitch: 60, StartBeats: 0, DurationBeats: 4, Velocity: 20}}

	res, err := Extend(melody, 8, Options{})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Notes[1].Velocity)
}

func TestExtend_PitchClamped(t *testing.T) {
	melody := []models.NoteEvent{{Pitch: 127, StartBeats: 0, DurationBeats: 4, Velocity: 100}}

	res, err := Extend(melody, 8, Options{})
	require.NoError(t, err)
	assert.Equal(t, 127, res.Notes[1].Pitch)
}

func TestExtend_ManyRepeatsTerminate(t *testing.T) {
	melody := []models.NoteEvent{{Pitch: 60, StartBeats: 0, DurationBeats: 0.5, Velocity: 100}}

	res, err := Extend(melody, 40, Options{})
	require.NoError(t, err)
	assert.Equal(t, 79, res.Repeats)
	assert.GreaterOrEqual(t, Duration(res.Notes), 40.0)
}

func TestExtend_RepeatCapFailsLoudly(t *testing.T) {
	melody := []models.NoteEvent{{Pitch: 60, StartBeats: 0, DurationBeats: 1, Velocity: 100}}

	res, err := Extend(melody, 100, Options{MaxRepeats: 10})
	require.ErrorIs(t, err, ErrCoverageShort)
	assert.Equal(t, 10, res.Repeats)
	assert.Less(t, res.FinalBeats, 100.0)
}

func TestExtend_EmptyMelody(t *testing.T) {
	_, err := Extend(nil, 32, Options{})
	assert.ErrorIs(t, err, ErrEmptyMelody)

	silent := []models.NoteEvent{{Pitch: 60, StartBeats: 0, DurationBeats: 0}}
	_, err = Extend(silent, 32, Options{})
	assert.ErrorIs(t, err, ErrEmptyMelody)
}

func TestDefaultPhrase(t *testing.T) {
	phrase := DefaultPhrase(3)
	require.NotEmpty(t, phrase)
	assert.Equal(t, 3.0, Duration(phrase))
	for _, n := range phrase {
		assert.Equal(t, models.ChannelMelody, n.Channel)
	}

	res, err := Extend(phrase, 12, Options{BeatsPerBar: 3})
	require.NoError(t, err)
	assert.Equal(t, 12.0, res.FinalBeats)

	assert.Equal(t, 4.0, Duration(DefaultPhrase(0)))
}
