package synth

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// DefaultGridBeats is a sixteenth note in beats.
const DefaultGridBeats = 0.25

// Assembler merges every generated part into one timeline.
type Assembler struct {
	gridBeats float64
}

// NewAssembler creates an assembler quantizing to gridBeats (1/16 when <= 0).
func NewAssembler(gridBeats float64) *Assembler {
	if gridBeats <= 0 {
		gridBeats = DefaultGridBeats
	}
	return &Assembler{gridBeats: gridBeats}
}

// Generate implements the Synthesize stage.
func (a *Assembler) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil {
		return nil, fmt.Errorf("synthesize needs a request")
	}
	melody := gctx.FinalMelody()
	if melody == nil || len(melody.Notes) == 0 {
		return nil, fmt.Errorf("synthesize needs a melody")
	}

	var parts []models.Track
	if gctx.Chords != nil {
		parts = append(parts, gctx.Chords.Track)
	}
	parts = append(parts, *melody)
	parts = append(parts, gctx.Instruments...)
	if gctx.Drums != nil {
		parts = append(parts, *gctx.Drums)
	}
	if gctx.Vocals != nil {
		parts = append(parts, gctx.Vocals.Track)
	}

	tl := a.Assemble(parts)
	tl.Tempo = gctx.Request.Tempo
	tl.BeatsPerBar = gctx.Request.BeatsPerBar()
	if total := gctx.Request.TotalBeats(); total > tl.TotalBeats {
		tl.TotalBeats = total
	}

	log.Printf("🎛️ Timeline: %d tracks, %.1f beats", len(tl.Tracks), tl.TotalBeats)
	return models.SynthSection{Timeline: tl}, nil
}

// Assemble orders tracks by channel, drops empty ones, and snaps every note
// to the grid with pitch and velocity kept in MIDI range.
func (a *Assembler) Assemble(parts []models.Track) models.Timeline {
	tl := models.Timeline{GridBeats: a.gridBeats}
	for _, part := range parts {
		if len(part.Notes) == 0 {
			continue
		}
		track := part
		track.Notes = make([]models.NoteEvent, 0, len(part.Notes))
		for _, n := range part.Notes {
			track.Notes = append(track.Notes, a.quantize(n, part.Channel))
		}
		sort.SliceStable(track.Notes, func(i, j int) bool {
			return track.Notes[i].StartBeats < track.Notes[j].StartBeats
		})
		if end := track.EndBeats(); end > tl.TotalBeats {
			tl.TotalBeats = end
		}
		tl.Tracks = append(tl.Tracks, track)
	}
	sort.SliceStable(tl.Tracks, func(i, j int) bool {
		return tl.Tracks[i].Channel < tl.Tracks[j].Channel
	})
	return tl
}

func (a *Assembler) quantize(n models.NoteEvent, channel int) models.NoteEvent {
	start := a.snap(n.StartBeats)
	end := a.snap(n.EndBeats())
	if end <= start {
		end = start + a.gridBeats
	}
	n.StartBeats = math.Max(start, 0)
	n.DurationBeats = end - n.StartBeats
	n.Pitch = clamp(n.Pitch, 0, 127)
	n.Velocity = clamp(n.Velocity, 1, 127)
	n.Channel = channel
	return n
}

func (a *Assembler) snap(beat float64) float64 {
	return math.Round(beat/a.gridBeats) * a.gridBeats
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
