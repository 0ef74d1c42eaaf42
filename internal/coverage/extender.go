// Package coverage guarantees that a melody spans the requested song length.
//
// Extend appends whole copies of the melody (the motif) after the original
// notes, lowering velocity and nudging the closing pitch on each copy, and cuts
// the last copy at the first bar line at or after the target.
package coverage

import (
	"errors"
	"fmt"
	"math"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

const (
	DefaultBeatsPerBar   = 4
	DefaultMaxRepeats    = 512
	DefaultVelocityDecay = 4
	DefaultMinVelocity   = 40

	epsilon = 1e-9
)

var (
	// ErrEmptyMelody is returned for a melody with no sounding notes.
	ErrEmptyMelody = errors.New("melody has no notes to extend")
	// ErrCoverageShort is returned when the repeat cap is hit before the target.
	ErrCoverageShort = errors.New("melody still short after maximum repeats")
)

// closingPitchShift is applied, in order, to the last note of each appended copy.
var closingPitchShift = []int{0, 2, -1, 1}

// Options tunes Extend. Zero values fall back to the defaults.
type Options struct {
	BeatsPerBar   int
	MaxRepeats    int
	VelocityDecay int // velocity removed per copy
	MinVelocity   int // floor for decayed velocity
}

func (o Options) normalized() Options {
	if o.BeatsPerBar <= 0 {
		o.BeatsPerBar = DefaultBeatsPerBar
	}
	if o.MaxRepeats <= 0 {
		o.MaxRepeats = DefaultMaxRepeats
	}
	if o.VelocityDecay < 0 {
		o.VelocityDecay = 0
	} else if o.VelocityDecay == 0 {
		o.VelocityDecay = DefaultVelocityDecay
	}
	if o.MinVelocity <= 0 {
		o.MinVelocity = DefaultMinVelocity
	}
	return o
}

// Result is the extended melody and how it was produced.
type Result struct {
	Notes         []models.NoteEvent
	OriginalBeats float64
	TargetBeats   float64
	FinalBeats    float64 // span of the result including rests, >= TargetBeats
	Repeats       int     // appended copies that kept at least one note
	Truncated     bool    // the last copy was cut at a bar line
}

// Duration is the span of notes from beat 0 to the latest note end.
func Duration(notes []models.NoteEvent) float64 {
	end := 0.0
	for _, n := range notes {
		if e := n.EndBeats(); e > end {
			end = e
		}
	}
	return end
}

// Extend returns melody lengthened to cover targetBeats. The input slice is
// never modified and the first len(melody) notes of the result equal it.
// A melody that already covers the target is returned as is.
func Extend(melody []models.NoteEvent, targetBeats float64, opts Options) (Result, error) {
	opts = opts.normalized()

	original := Duration(melody)
	if len(melody) == 0 || original <= epsilon {
		return Result{TargetBeats: targetBeats}, ErrEmptyMelody
	}

	notes := make([]models.NoteEvent, len(melody))
	copy(notes, melody)

	res := Result{
		Notes:         notes,
		OriginalBeats: original,
		TargetBeats:   targetBeats,
		FinalBeats:    original,
	}
	if original+epsilon >= targetBeats {
		return res, nil
	}

	repeats := int(math.Ceil(targetBeats/original-epsilon)) - 1
	if repeats > opts.MaxRepeats {
		res.Repeats = opts.MaxRepeats
		res.FinalBeats = original * float64(opts.MaxRepeats+1)
		return res, fmt.Errorf("%w: %d repeats of %.2f beats reach %.2f of %.2f",
			ErrCoverageShort, opts.MaxRepeats, original, res.FinalBeats, targetBeats)
	}

	spanEnd := original * float64(repeats+1)
	cutoff := spanEnd
	if barLine := nextBarLine(targetBeats, opts.BeatsPerBar); barLine < cutoff {
		cutoff = barLine
		res.Truncated = true
	}
	// A leading rest can push the whole first copy past the cut; move the cut
	// to the bar line after its first note so at least that note sounds.
	if first := original + firstStart(melody); first >= cutoff-epsilon {
		cutoff = barLineAfter(first, opts.BeatsPerBar)
		res.Truncated = cutoff < spanEnd
	}

	held := -1
	for k := 1; k <= repeats; k++ {
		offset := original * float64(k)
		added := 0
		for _, n := range variedCopy(melody, k, opts) {
			n.StartBeats += offset
			if n.StartBeats >= cutoff-epsilon {
				continue
			}
			if n.EndBeats() > cutoff {
				n.DurationBeats = cutoff - n.StartBeats
			}
			res.Notes = append(res.Notes, n)
			if held < 0 || n.StartBeats >= res.Notes[held].StartBeats {
				held = len(res.Notes) - 1
			}
			added++
		}
		if added > 0 {
			res.Repeats++
		}
	}

	// A trailing rest can leave the latest appended note short of the target; hold it to the cut
	if held >= 0 && Duration(res.Notes) < targetBeats {
		res.Notes[held].DurationBeats = cutoff - res.Notes[held].StartBeats
	}

	res.FinalBeats = cutoff
	return res, nil
}

func firstStart(notes []models.NoteEvent) float64 {
	first := notes[0].StartBeats
	for _, n := range notes[1:] {
		if n.StartBeats < first {
			first = n.StartBeats
		}
	}
	return first
}

// variedCopy returns the k-th copy of the motif (k >= 1) before time offset.
func variedCopy(melody []models.NoteEvent, k int, opts Options) []models.NoteEvent {
	out := make([]models.NoteEvent, len(melody))
	closing := 0
	for i, n := range melody {
		n.Velocity = clamp(n.Velocity-k*opts.VelocityDecay, opts.MinVelocity, 127)
		if n.Velocity > melody[i].Velocity {
			n.Velocity = melody[i].Velocity
		}
		out[i] = n
		if n.StartBeats >= out[closing].StartBeats {
			closing = i
		}
	}
	out[closing].Pitch = clamp(out[closing].Pitch+closingPitchShift[k%len(closingPitchShift)], 0, 127)
	return out
}

// nextBarLine returns the first bar line at or after beat.
func nextBarLine(beat float64, beatsPerBar int) float64 {
	bpb := float64(beatsPerBar)
	return math.Ceil(beat/bpb-epsilon) * bpb
}

// barLineAfter returns the first bar line strictly after beat.
func barLineAfter(beat float64, beatsPerBar int) float64 {
	bpb := float64(beatsPerBar)
	return (math.Floor(beat/bpb+epsilon) + 1) * bpb
}

// DefaultPhrase is the one-bar phrase substituted for an empty melody:
// a stepwise C major figure on the melody channel.
func DefaultPhrase(beatsPerBar int) []models.NoteEvent {
	if beatsPerBar <= 0 {
		beatsPerBar = DefaultBeatsPerBar
	}
	pitches := []int{60, 62, 64, 67, 65, 64, 62, 60}
	step := float64(beatsPerBar) / float64(len(pitches))
	notes := make([]models.NoteEvent, len(pitches))
	for i, p := range pitches {
		notes[i] = models.NoteEvent{
			Pitch:         p,
			StartBeats:    float64(i) * step,
			DurationBeats: step,
			Velocity:      90,
			Channel:       models.ChannelMelody,
		}
	}
	return notes
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
