package models

import "time"

// MIDI channel layout shared by every stage.
const (
	ChannelMelody = 0
	ChannelChords = 1
	ChannelVocals = 8
	ChannelDrums  = 9

	// GM programs for the fixed parts.
	ProgramMelody = 0
	ProgramChords = 24
	ProgramVocals = 54
)

var instrumentChannels = []int{2, 3, 4, 5, 6, 7, 10, 11, 12, 13, 14, 15}

// InstrumentChannel maps the i-th accompaniment part to a free channel.
func InstrumentChannel(i int) int {
	return instrumentChannels[i%len(instrumentChannels)]
}

// NoteEvent is a single note owned by a track.
type NoteEvent struct {
	Pitch         int     `json:"pitch"`
	StartBeats    float64 `json:"start_beats"`
	DurationBeats float64 `json:"duration_beats"`
	Velocity      int     `json:"velocity"`
	Channel       int     `json:"channel"`
}

// EndBeats returns the beat at which the note stops sounding.
func (n NoteEvent) EndBeats() float64 {
	return n.StartBeats + n.DurationBeats
}

// ChordEvent is a chord symbol placed on the timeline.
type ChordEvent struct {
	Symbol        string  `json:"symbol"`
	StartBeats    float64 `json:"start_beats"`
	DurationBeats float64 `json:"duration_beats"`
}

// Track is one instrument line.
type Track struct {
	Name    string      `json:"name"`
	Program int         `json:"program"`
	Channel int         `json:"channel"`
	IsDrum  bool        `json:"is_drum"`
	Notes   []NoteEvent `json:"notes"`
}

// EndBeats returns the end of the last sounding note.
func (t Track) EndBeats() float64 {
	end := 0.0
	for _, n := range t.Notes {
		if e := n.EndBeats(); e > end {
			end = e
		}
	}
	return end
}

// CompositionSection is a named span of the song structure.
type CompositionSection struct {
	Name       string  `json:"name"`
	StartBeats float64 `json:"start_beats"`
	EndBeats   float64 `json:"end_beats"`
	Energy     int     `json:"energy"`
}

// LengthBeats returns the section span.
func (s CompositionSection) LengthBeats() float64 {
	return s.EndBeats - s.StartBeats
}

// SectionAt returns the section covering beat, or the last one past the end.
func SectionAt(sections []CompositionSection, beat float64) (CompositionSection, bool) {
	for _, s := range sections {
		if beat >= s.StartBeats && beat < s.EndBeats {
			return s, true
		}
	}
	if len(sections) > 0 {
		return sections[len(sections)-1], true
	}
	return CompositionSection{}, false
}

// LyricToken is one sung word aligned to a vocal note.
type LyricToken struct {
	Text      string `json:"text"`
	NoteIndex int    `json:"note_index"`
}

// ArtistProfile summarises the stylistic traits of a reference artist.
type ArtistProfile struct {
	Artist              string   `json:"artist"`
	StyleSummary        string   `json:"style_summary"`
	SignatureTechniques []string `json:"signature_techniques"`
	HarmonicTendencies  string   `json:"harmonic_tendencies"`
	TempoMin            int      `json:"tempo_min"`
	TempoMax            int      `json:"tempo_max"`
	Instrumentation     []string `json:"instrumentation"`
	Generic             bool     `json:"generic"`
}

// CoverageReport describes how the melody was brought up to the requested length.
type CoverageReport struct {
	Melody        Track   `json:"-"`
	OriginalBeats float64 `json:"original_beats"`
	TargetBeats   float64 `json:"target_beats"`
	FinalBeats    float64 `json:"final_beats"`
	Repeats       int     `json:"repeats"`
	Substituted   bool    `json:"substituted"`
}

// Timeline is the merged multi-track composition handed to renderers.
type Timeline struct {
	Tempo       int     `json:"tempo"`
	BeatsPerBar int     `json:"beats_per_bar"`
	GridBeats   float64 `json:"grid_beats"`
	TotalBeats  float64 `json:"total_beats"`
	Tracks      []Track `json:"tracks"`
}

// Artifact is one rendered output.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
	ID   string `json:"id,omitempty"`
}

// ExportResult lists everything renderers produced.
type ExportResult struct {
	Artifacts  []Artifact `json:"artifacts"`
	ExportedAt time.Time  `json:"exported_at"`
}
