package arranger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

const (
	chordOctave  = 4
	bassOctave   = 2
	baseVelocity = 64
)

// genreProgressions are used when no retrieved progression is usable.
var genreProgressions = map[string][]string{
	"pop":        {"I", "V", "vi", "IV"},
	"rock":       {"I", "IV", "V", "IV"},
	"jazz":       {"ii7", "V7", "Imaj7", "vi7"},
	"blues":      {"I7", "I7", "I7", "I7", "IV7", "IV7", "I7", "I7", "V7", "IV7", "I7", "V7"},
	"country":    {"I", "IV", "I", "V"},
	"folk":       {"I", "IV", "vi", "V"},
	"classical":  {"I", "IV", "V", "I"},
	"electronic": {"vi", "IV", "I", "V"},
	"r&b":        {"Imaj7", "vi7", "ii7", "V7"},
	"hip-hop":    {"i", "VI", "III", "VII"},
	"metal":      {"i", "VI", "VII", "i"},
	"punk":       {"I", "V", "vi", "IV"},
}

var defaultProgression = []string{"I", "IV", "V", "I"}

// ChordAgent lays a chord progression over the planned structure, one chord per bar.
type ChordAgent struct{}

// NewChordAgent creates a chord agent
func NewChordAgent() *ChordAgent {
	return &ChordAgent{}
}

// Generate implements the GenerateChords stage.
func (a *ChordAgent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil || len(gctx.Structure) == 0 {
		return nil, fmt.Errorf("chords need a request and a structure")
	}
	req := *gctx.Request
	key := requestKey(req)
	bpb := float64(req.BeatsPerBar())

	numerals, source := a.progression(req, gctx.Patterns)
	symbols := make([]string, 0, len(numerals))
	for _, n := range numerals {
		sym, err := ResolveChord(n, key)
		if err != nil {
			log.Printf("⚠️ Skipping chord %q: %v", n, err)
			continue
		}
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		for _, n := range defaultProgression {
			sym, _ := ResolveChord(n, key)
			symbols = append(symbols, sym)
		}
		source = "default"
	}

	out := models.ChordSection{
		Track: models.Track{
			Name:    "Chords",
			Program: models.ProgramChords,
			Channel: models.ChannelChords,
		},
	}

	for _, sec := range gctx.Structure {
		tmpl := chordTemplate(sec.Energy, req.BeatsPerBar())
		bar := 0
		for start := sec.StartBeats; start < sec.EndBeats; start += bpb {
			symbol := symbols[bar%len(symbols)]
			bar++

			out.Events = append(out.Events, models.ChordEvent{Symbol: symbol, StartBeats: start, DurationBeats: bpb})

			voicing, err := ChordToMIDI(symbol, chordOctave)
			if err != nil {
				return nil, fmt.Errorf("voicing %s: %w", symbol, err)
			}
			out.Track.Notes = append(out.Track.Notes,
				ApplyRhythm(voicing, tmpl, start, bpb, EnergyVelocity(baseVelocity, sec.Energy), models.ChannelChords)...)
		}
	}

	if len(out.Track.Notes) == 0 {
		return nil, fmt.Errorf("chord track is empty")
	}

	log.Printf("🎹 Chords: %d bars from %s progression %s", len(out.Events), source, strings.Join(symbols, " "))
	return out, nil
}

// progression prefers the best indexed chord pattern; built-in patterns are
// generic, so the genre default is used instead.
func (a *ChordAgent) progression(req models.MusicalRequest, set *models.PatternSet) ([]string, string) {
	if set != nil {
		if p, ok := set.Best(models.KindChordProgression); ok && p.Source != "builtin" && len(p.Data.Chords) > 0 {
			return p.Data.Chords, "pattern " + p.ID
		}
	}
	if prog, ok := genreProgressions[req.Genre]; ok {
		return prog, req.Genre
	}
	return defaultProgression, "default"
}

func chordTemplate(energy, beatsPerBar int) RhythmTemplate {
	name := "whole"
	switch {
	case beatsPerBar == 3:
		name = "waltz"
	case energy >= 8:
		name = "half"
	}
	tmpl, _ := GetRhythmTemplate(name)
	return tmpl
}

func requestKey(req models.MusicalRequest) Key {
	k, err := ParseKey(req.Key)
	if err != nil {
		log.Printf("⚠️ %v, using C Major", err)
		return Key{}
	}
	return k
}

// EnergyVelocity scales a base velocity by section energy (1-10, 6 neutral).
func EnergyVelocity(base, energy int) int {
	if energy <= 0 {
		energy = 6
	}
	return clampVelocity(base + (energy-6)*5)
}

// ApplyRhythm strikes pitches together at every template offset inside one bar.
// Offsets at or past the bar end are dropped.
func ApplyRhythm(pitches []int, tmpl RhythmTemplate, barStart, beatsPerBar float64, velocity, channel int) []models.NoteEvent {
	var notes []models.NoteEvent
	for i, offset := range tmpl.Offsets {
		if offset >= beatsPerBar {
			break
		}
		next := beatsPerBar
		if i+1 < len(tmpl.Offsets) && tmpl.Offsets[i+1] < beatsPerBar {
			next = tmpl.Offsets[i+1]
		}
		duration := (next - offset) * tmpl.Articulation

		accent := 1.0
		if i < len(tmpl.Accents) {
			accent = tmpl.Accents[i]
		}
		for _, p := range pitches {
			notes = append(notes, models.NoteEvent{
				Pitch:         p,
				StartBeats:    barStart + offset,
				DurationBeats: duration,
				Velocity:      clampVelocity(int(float64(velocity) * accent)),
				Channel:       channel,
			})
		}
	}
	return notes
}

func clampVelocity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}
