package melody

import (
	"context"
	"fmt"
	"log"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/arranger"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

const (
	// DefaultMotifBars caps the generated motif; ValidateCoverage repeats it to full length.
	DefaultMotifBars = 8

	baseVelocity = 90
	lowestPitch  = 48
	highestPitch = 84
)

// stepwise rise and fall used when no phrase pattern is available
var defaultPhrase = models.PatternData{
	StartPitch: 60,
	Intervals:  []int{2, 2, 1, 2, -2, -1, -2, -2},
	Rhythm:     []float64{1, 1, 1, 1, 1, 1, 1, 1},
}

// Agent writes the lead motif from the best melodic phrase pattern.
type Agent struct {
	motifBars int
}

// NewMelodyAgent creates a melody agent; motifBars <= 0 uses DefaultMotifBars.
func NewMelodyAgent(motifBars int) *Agent {
	if motifBars <= 0 {
		motifBars = DefaultMotifBars
	}
	return &Agent{motifBars: motifBars}
}

// Generate implements the GenerateMelody stage.
func (a *Agent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil {
		return nil, fmt.Errorf("melody needs a request")
	}
	req := *gctx.Request

	key, err := arranger.ParseKey(req.Key)
	if err != nil {
		key = arranger.Key{}
	}

	phrase, source := defaultPhrase, "default"
	if gctx.Patterns != nil {
		if p, ok := gctx.Patterns.Best(models.KindMelodicPhrase); ok && len(p.Data.Rhythm) > 0 {
			phrase, source = p.Data, p.ID
		}
	}

	bars := a.motifBars
	if total := req.TotalBars(); total < bars {
		bars = total
	}
	motifBeats := float64(bars * req.BeatsPerBar())

	notes := buildMotif(phrase, key, motifBeats, gctx.Structure)
	if len(notes) == 0 {
		return nil, fmt.Errorf("melody motif is empty")
	}

	log.Printf("🎼 Melody: %d-bar motif, %d notes from %s", bars, len(notes), source)
	return models.MelodySection{Track: models.Track{
		Name:    "Melody",
		Program: models.ProgramMelody,
		Channel: models.ChannelMelody,
		Notes:   notes,
	}}, nil
}

// buildMotif plays the phrase over and over until motifBeats, moving every
// other pass up a third. Pitches are moved into the key and a comfortable range.
func buildMotif(phrase models.PatternData, key arranger.Key, motifBeats float64, sections []models.CompositionSection) []models.NoteEvent {
	if phraseBeats(phrase) <= 0 {
		phrase = defaultPhrase
	}
	// phrases are written against middle C; move them to the key's tonic
	start := key.ScalePitch(0, 4)
	if phrase.StartPitch > 0 {
		start += phrase.StartPitch - 60
	}

	var notes []models.NoteEvent
	beat := 0.0
	for pass := 0; beat < motifBeats; pass++ {
		pitch := start
		if pass%2 == 1 {
			pitch += 4
		}
		for i, dur := range phrase.Rhythm {
			if beat >= motifBeats {
				break
			}
			if dur <= 0 {
				continue
			}
			if beat+dur > motifBeats {
				dur = motifBeats - beat
			}

			energy := 6
			if sec, ok := models.SectionAt(sections, beat); ok {
				energy = sec.Energy
			}
			notes = append(notes, models.NoteEvent{
				Pitch:         key.Snap(fold(pitch)),
				StartBeats:    beat,
				DurationBeats: dur,
				Velocity:      arranger.EnergyVelocity(baseVelocity, energy),
				Channel:       models.ChannelMelody,
			})

			beat += dur
			if len(phrase.Intervals) > 0 {
				pitch += phrase.Intervals[i%len(phrase.Intervals)]
			}
		}
	}
	return notes
}

func phraseBeats(phrase models.PatternData) float64 {
	total := 0.0
	for _, d := range phrase.Rhythm {
		if d > 0 {
			total += d
		}
	}
	return total
}

// fold moves pitch by octaves into the melody range
func fold(pitch int) int {
	for pitch < lowestPitch {
		pitch += 12
	}
	for pitch > highestPitch {
		pitch -= 12
	}
	return pitch
}
