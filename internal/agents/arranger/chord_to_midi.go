package arranger

import (
	"fmt"
	"strings"
)

// RhythmTemplate defines where a part strikes within one bar of 4 beats.
type RhythmTemplate struct {
	Name string
	// Offsets within a bar, in beats
	Offsets []float64
	// Velocity multipliers for accents (1.0 = normal)
	Accents []float64
	// Duration multiplier (affects note length, 0.0-1.0)
	Articulation float64
}

const (
	articulationLegato = 1.0
	articulationHigh   = 0.9
	articulationMid    = 0.85
	articulationShort  = 0.4
)

func rhythm(name string, articulation float64, offsets, accents []float64) RhythmTemplate {
	return RhythmTemplate{Name: name, Offsets: offsets, Accents: accents, Articulation: articulation}
}

var eighthOffsets = []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5}

var rhythmTemplates = map[string]RhythmTemplate{
	"whole":      rhythm("whole", articulationLegato, []float64{0}, []float64{1.0}),
	"half":       rhythm("half", articulationLegato, []float64{0, 2}, []float64{1.0, 0.9}),
	"quarters":   rhythm("quarters", articulationHigh, []float64{0, 1, 2, 3}, []float64{1.0, 0.8, 0.9, 0.8}),
	"8ths":       rhythm("8ths", articulationMid, eighthOffsets, []float64{1.0, 0.7, 0.9, 0.7, 0.95, 0.7, 0.9, 0.7}),
	"broken":     rhythm("broken", articulationHigh, eighthOffsets, []float64{1.0, 0.8, 0.85, 0.75, 0.95, 0.8, 0.85, 0.75}),
	"offbeat":    rhythm("offbeat", articulationMid, []float64{0.5, 1.5, 2.5, 3.5}, []float64{0.9, 0.85, 0.9, 0.85}),
	"syncopated": rhythm("syncopated", articulationMid, []float64{0, 0.5, 1.5, 2, 3, 3.5}, []float64{1.0, 0.8, 0.9, 0.85, 0.95, 0.8}),
	"staccato":   rhythm("staccato", articulationShort, []float64{0, 1, 2, 3}, []float64{1.0, 0.9, 0.95, 0.9}),
	"waltz":      rhythm("waltz", articulationHigh, []float64{0, 1, 2}, []float64{1.0, 0.7, 0.75}),
	"swing":      rhythm("swing", articulationMid, []float64{0, 0.67, 1, 1.67, 2, 2.67, 3, 3.67}, []float64{1.0, 0.7, 0.9, 0.7, 0.95, 0.7, 0.9, 0.7}), // triplet feel
}

// GetRhythmTemplate returns a rhythm template by name
func GetRhythmTemplate(name string) (RhythmTemplate, bool) {
	tmpl, ok := rhythmTemplates[name]
	return tmpl, ok
}

// ChordToMIDI converts chord symbols to MIDI note numbers
// Supports: C, Em, Am7, Cmaj7, Bdim, Gsus4, Emin/G (inversions), etc.
// octave follows scientific pitch notation: ChordToMIDI("C", 4) starts on middle C (60).
func ChordToMIDI(chordSymbol string, octave int) ([]int, error) {
	baseChord := strings.TrimSpace(chordSymbol)
	bassNote := ""
	if parts := strings.Split(baseChord, "/"); len(parts) == 2 {
		baseChord = strings.TrimSpace(parts[0])
		bassNote = strings.TrimSpace(parts[1])
	}

	root, err := parseRootNote(baseChord)
	if err != nil {
		return nil, fmt.Errorf("invalid chord root: %w", err)
	}
	rootMIDI := noteToMIDI(root, octave)

	intervals := buildChordIntervals(parseChordQuality(baseChord), parseExtensions(baseChord))

	notes := make([]int, 0, len(intervals)+1)
	if bassNote != "" {
		if bassRoot, err := parseRootNote(bassNote); err == nil {
			if bass := noteToMIDI(bassRoot, octave-1); bass >= 0 && bass <= 127 {
				notes = append(notes, bass)
			}
		}
	}
	for _, interval := range intervals {
		n := rootMIDI + interval
		if n < 0 || n > 127 {
			continue
		}
		notes = append(notes, n)
	}

	if len(notes) == 0 {
		return nil, fmt.Errorf("no valid MIDI notes generated for chord: %s", chordSymbol)
	}
	return notes, nil
}

// ChordRoot returns the pitch class (0-11) of a chord symbol's root.
func ChordRoot(chordSymbol string) (int, error) {
	root, err := parseRootNote(strings.TrimSpace(chordSymbol))
	if err != nil {
		return 0, err
	}
	return noteOffsets[root], nil
}

// NoteNameToMIDI converts a note name like "E1", "C4", "F#3", "Bb2" to MIDI note number
// Format: <note><accidental?><octave>, C4 = 60 = middle C
func NoteNameToMIDI(noteName string) (int, error) {
	if len(noteName) < 2 {
		return 0, fmt.Errorf("note name too short: %s", noteName)
	}

	idx := 1
	if noteName[1] == '#' || noteName[1] == 'b' {
		idx = 2
	}
	root, err := parseRootNote(strings.ToUpper(noteName[:1]) + noteName[1:idx])
	if err != nil {
		return 0, err
	}
	if idx >= len(noteName) {
		return 0, fmt.Errorf("missing octave in note name: %s", noteName)
	}

	var octave int
	if _, err := fmt.Sscanf(noteName[idx:], "%d", &octave); err != nil {
		return 0, fmt.Errorf("invalid octave in note name %s: %w", noteName, err)
	}

	return clampMIDI(noteToMIDI(root, octave)), nil
}

var noteOffsets = map[string]int{
	"C": 0, "C#": 1, "Db": 1,
	"D": 2, "D#": 3, "Eb": 3,
	"E": 4, "Fb": 4, "E#": 5,
	"F": 5, "F#": 6, "Gb": 6,
	"G": 7, "G#": 8, "Ab": 8,
	"A": 9, "A#": 10, "Bb": 10,
	"B": 11, "Cb": 11, "B#": 0,
}

func parseRootNote(chordSymbol string) (string, error) {
	if len(chordSymbol) == 0 {
		return "", fmt.Errorf("empty chord symbol")
	}

	root := chordSymbol[:1]
	if len(chordSymbol) > 1 && (chordSymbol[1] == '#' || chordSymbol[1] == 'b') {
		root = chordSymbol[:2]
	}
	if _, ok := noteOffsets[root]; !ok {
		return "", fmt.Errorf("invalid root note: %s", root)
	}
	return root, nil
}

func stripRoot(chordSymbol string) string {
	if len(chordSymbol) > 1 && (chordSymbol[1] == '#' || chordSymbol[1] == 'b') {
		return chordSymbol[2:]
	}
	if len(chordSymbol) > 0 {
		return chordSymbol[1:]
	}
	return chordSymbol
}

func parseChordQuality(chordSymbol string) string {
	s := stripRoot(chordSymbol)

	switch {
	case strings.HasPrefix(s, "maj"):
		return "major"
	case strings.HasPrefix(s, "min"), strings.HasPrefix(s, "m"):
		if strings.HasPrefix(s, "m7b5") {
			return "half-diminished"
		}
		return "minor"
	case strings.HasPrefix(s, "dim"), strings.HasPrefix(s, "°"):
		return "diminished"
	case strings.HasPrefix(s, "aug"), strings.HasPrefix(s, "+"):
		return "augmented"
	case strings.HasPrefix(s, "sus2"):
		return "sus2"
	case strings.HasPrefix(s, "sus4"), strings.HasPrefix(s, "sus"):
		return "sus4"
	}
	return "major"
}

func parseExtensions(chordSymbol string) []string {
	s := stripRoot(chordSymbol)
	if strings.HasPrefix(s, "m7b5") {
		return []string{"7"}
	}

	// "maj" is checked before "m" so Cmaj7 is not read as a minor chord
	majorSeventh := strings.HasPrefix(s, "maj")
	for _, prefix := range []string{"maj", "min", "m", "dim", "aug", "sus2", "sus4", "sus"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}

	var extensions []string
	for _, ext := range []string{"add9", "add11", "add13"} {
		if strings.Contains(s, ext) {
			extensions = append(extensions, ext)
			s = strings.ReplaceAll(s, ext, "")
		}
	}

	seventh := "7"
	if majorSeventh {
		seventh = "maj7"
	}
	switch {
	case strings.Contains(s, "13"):
		extensions = append(extensions, seventh, "9", "13")
	case strings.Contains(s, "11"):
		extensions = append(extensions, seventh, "9", "11")
	case strings.Contains(s, "9"):
		extensions = append(extensions, seventh, "9")
	case strings.Contains(s, "7"):
		extensions = append(extensions, seventh)
	case strings.Contains(s, "6"):
		extensions = append(extensions, "6")
	}

	return extensions
}

func buildChordIntervals(quality string, extensions []string) []int {
	var intervals []int

	switch quality {
	case "minor":
		intervals = []int{0, 3, 7}
	case "diminished":
		intervals = []int{0, 3, 6}
	case "half-diminished":
		intervals = []int{0, 3, 6}
	case "augmented":
		intervals = []int{0, 4, 8}
	case "sus2":
		intervals = []int{0, 2, 7}
	case "sus4":
		intervals = []int{0, 5, 7}
	default:
		intervals = []int{0, 4, 7}
	}

	for _, ext := range extensions {
		switch ext {
		case "6":
			intervals = append(intervals, 9)
		case "7":
			if quality == "diminished" {
				intervals = append(intervals, 9)
			} else {
				intervals = append(intervals, 10)
			}
		case "maj7":
			intervals = append(intervals, 11)
		case "9", "add9":
			intervals = append(intervals, 14)
		case "11", "add11":
			intervals = append(intervals, 17)
		case "13", "add13":
			intervals = append(intervals, 21)
		}
	}

	return intervals
}

// noteToMIDI places a root name in an octave, C4 = 60
func noteToMIDI(note string, octave int) int {
	offset, ok := noteOffsets[note]
	if !ok {
		return 60
	}
	return (octave+1)*12 + offset
}

func clampMIDI(n int) int {
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return n
}
