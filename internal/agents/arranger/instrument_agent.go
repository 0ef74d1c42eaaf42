package arranger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// General MIDI programs by instrument name
var gmPrograms = map[string]int{
	"piano":           0,
	"electric piano":  4,
	"organ":           16,
	"guitar":          24,
	"acoustic guitar": 25,
	"electric guitar": 27,
	"bass":            33,
	"upright bass":    32,
	"double bass":     32,
	"electric bass":   33,
	"synth bass":      38,
	"violin":          40,
	"viola":           41,
	"cello":           42,
	"harp":            46,
	"strings":         48,
	"choir":           52,
	"trumpet":         56,
	"trombone":        57,
	"horn":            60,
	"saxophone":       65,
	"sax":             65,
	"oboe":            68,
	"clarinet":        71,
	"flute":           73,
	"synth":           81,
	"pad":             89,
}

var drumNames = map[string]bool{
	"drums": true, "drum": true, "percussion": true, "drum kit": true, "kit": true,
}

// part rhythm per genre for chordal accompaniment
var genreRhythms = map[string]string{
	"jazz":       "swing",
	"blues":      "swing",
	"rock":       "8ths",
	"metal":      "8ths",
	"punk":       "8ths",
	"electronic": "offbeat",
	"hip-hop":    "syncopated",
	"r&b":        "syncopated",
	"classical":  "broken",
	"folk":       "broken",
}

// GMProgram returns the General MIDI program for an instrument name, 0 when unknown.
func GMProgram(instrument string) int {
	if p, ok := gmPrograms[instrument]; ok {
		return p
	}
	for _, name := range programNames {
		if strings.Contains(instrument, name) {
			return gmPrograms[name]
		}
	}
	return 0
}

// programNames lists gmPrograms keys longest first so "electric bass" wins over "bass".
var programNames = func() []string {
	names := make([]string, 0, len(gmPrograms))
	for name := range gmPrograms {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// IsDrumInstrument reports whether the name denotes the drum kit.
func IsDrumInstrument(instrument string) bool {
	return drumNames[instrument]
}

// IsBassInstrument reports whether the instrument plays the bass line.
func IsBassInstrument(instrument string) bool {
	return strings.Contains(instrument, "bass") || instrument == "cello"
}

// LeadInstrument is the first requested pitched instrument; it carries the melody.
func LeadInstrument(req models.MusicalRequest) string {
	for _, inst := range req.Instruments {
		if !IsDrumInstrument(inst) {
			return inst
		}
	}
	return models.DefaultInstrument
}

// InstrumentAgent writes one accompaniment part per requested instrument except
// the lead and the drum kit.
type InstrumentAgent struct{}

// NewInstrumentAgent creates an instrument agent
func NewInstrumentAgent() *InstrumentAgent {
	return &InstrumentAgent{}
}

// Generate implements the GenerateInstruments stage.
func (a *InstrumentAgent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil || gctx.Chords == nil {
		return nil, fmt.Errorf("instruments need a request and chords")
	}
	req := *gctx.Request
	lead := LeadInstrument(req)

	out := models.InstrumentSection{Tracks: []models.Track{}}
	for _, inst := range req.Instruments {
		if inst == lead || IsDrumInstrument(inst) {
			continue
		}

		track := models.Track{
			Name:    titleCase(inst),
			Program: GMProgram(inst),
			Channel: models.InstrumentChannel(len(out.Tracks)),
		}
		track.Notes = a.part(inst, req, gctx, track.Channel)
		if len(track.Notes) == 0 {
			return nil, fmt.Errorf("part %s has no notes", inst)
		}

		log.Printf("🎸 Instrument part %s: program=%d channel=%d notes=%d",
			inst, track.Program, track.Channel, len(track.Notes))
		out.Tracks = append(out.Tracks, track)
	}

	return out, nil
}

func (a *InstrumentAgent) part(inst string, req models.MusicalRequest, gctx *models.GenerationContext, channel int) []models.NoteEvent {
	bpb := float64(req.BeatsPerBar())
	bass := IsBassInstrument(inst)

	rhythm := "quarters"
	if r, ok := genreRhythms[req.Genre]; ok {
		rhythm = r
	}
	if bass {
		rhythm = "half"
	}
	if req.BeatsPerBar() == 3 {
		rhythm = "waltz"
	}
	tmpl, _ := GetRhythmTemplate(rhythm)

	var notes []models.NoteEvent
	for _, ev := range gctx.Chords.Events {
		energy := 6
		if sec, ok := models.SectionAt(gctx.Structure, ev.StartBeats); ok {
			energy = sec.Energy
		}

		var pitches []int
		if bass {
			root, err := ChordRoot(ev.Symbol)
			if err != nil {
				continue
			}
			pitches = []int{(bassOctave+1)*12 + root}
		} else {
			voicing, err := ChordToMIDI(ev.Symbol, chordOctave-1)
			if err != nil {
				continue
			}
			pitches = voicing
		}
		notes = append(notes, ApplyRhythm(pitches, tmpl, ev.StartBeats, bpb, EnergyVelocity(baseVelocity, energy), channel)...)
	}
	return notes
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
