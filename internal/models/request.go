package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Request defaults applied when the caller or the description parser leaves a field empty.
const (
	DefaultGenre         = "pop"
	DefaultMood          = "neutral"
	DefaultTempo         = 120
	DefaultDuration      = 2.0
	DefaultKey           = "C Major"
	DefaultTimeSignature = "4/4"
	DefaultInstrument    = "piano"

	minTempo       = 20
	maxTempo       = 300
	maxDurationMin = 20.0
)

// RequestParams is the loosely-typed input accepted by the API and MCP surfaces
// before defaults and validation are applied.
type RequestParams struct {
	Genre         string        `json:"genre,omitempty"`
	Subgenre      string        `json:"subgenre,omitempty"`
	Mood          string        `json:"mood,omitempty"`
	Tempo         int           `json:"tempo,omitempty"`
	Duration      float64       `json:"duration,omitempty"` // minutes
	Instruments   []string      `json:"instruments,omitempty"`
	Artist        string        `json:"artist,omitempty"`
	Vocals        bool          `json:"vocals,omitempty"`
	VocalStyle    string        `json:"vocal_style,omitempty"`
	Lyrics        string        `json:"lyrics,omitempty"`
	Key           string        `json:"key,omitempty"`
	TimeSignature string        `json:"time_signature,omitempty"`
	Sections      []SectionSpec `json:"sections,omitempty"`
}

// RequestInput is what a pipeline run starts from: free text, explicit params, or both.
// Explicit params win over anything parsed from the description.
type RequestInput struct {
	Description string         `json:"description,omitempty"`
	Params      *RequestParams `json:"params,omitempty"`
}

// IsEmpty reports whether the input carries nothing to compose from.
func (in RequestInput) IsEmpty() bool {
	return strings.TrimSpace(in.Description) == "" && in.Params == nil
}

// SectionSpec is a requested song section measured in bars.
type SectionSpec struct {
	Name string `json:"name"`
	Bars int    `json:"bars"`
}

// MusicalRequest is the validated, immutable request a composition run works from.
type MusicalRequest struct {
	Genre         string
	Subgenre      string
	Mood          string
	Tempo         int
	Duration      float64 // minutes
	Instruments   []string
	Artist        string
	Vocals        bool
	VocalStyle    string
	Lyrics        string
	Key           string
	TimeSignature string
	Sections      []SectionSpec
}

// NewMusicalRequest applies defaults to params and validates the result.
func NewMusicalRequest(params RequestParams) (MusicalRequest, error) {
	req := MusicalRequest{
		Genre:         normalizeWord(params.Genre, DefaultGenre),
		Subgenre:      strings.TrimSpace(params.Subgenre),
		Mood:          normalizeWord(params.Mood, DefaultMood),
		Tempo:         params.Tempo,
		Duration:      params.Duration,
		Artist:        strings.TrimSpace(params.Artist),
		Vocals:        params.Vocals,
		VocalStyle:    strings.TrimSpace(params.VocalStyle),
		Lyrics:        params.Lyrics,
		Key:           strings.TrimSpace(params.Key),
		TimeSignature: strings.TrimSpace(params.TimeSignature),
	}

	if req.Tempo == 0 {
		req.Tempo = DefaultTempo
	}
	if req.Duration == 0 {
		req.Duration = DefaultDuration
	}
	if req.Key == "" {
		req.Key = DefaultKey
	}
	if req.TimeSignature == "" {
		req.TimeSignature = DefaultTimeSignature
	}

	seen := make(map[string]bool)
	for _, inst := range params.Instruments {
		name := strings.ToLower(strings.TrimSpace(inst))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		req.Instruments = append(req.Instruments, name)
	}
	if len(req.Instruments) == 0 {
		req.Instruments = []string{DefaultInstrument}
	}

	for _, s := range params.Sections {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		req.Sections = append(req.Sections, SectionSpec{Name: strings.ToLower(strings.TrimSpace(s.Name)), Bars: s.Bars})
	}

	if err := req.Validate(); err != nil {
		return MusicalRequest{}, err
	}
	return req, nil
}

// Validate checks the numeric bounds of the request.
func (r MusicalRequest) Validate() error {
	if r.Tempo < minTempo || r.Tempo > maxTempo {
		return fmt.Errorf("tempo %d out of range [%d, %d]", r.Tempo, minTempo, maxTempo)
	}
	if r.Duration <= 0 || r.Duration > maxDurationMin {
		return fmt.Errorf("duration %.2f minutes out of range (0, %.0f]", r.Duration, maxDurationMin)
	}
	if len(r.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	if _, err := parseTimeSignature(r.TimeSignature); err != nil {
		return err
	}
	for _, s := range r.Sections {
		if s.Bars < 0 {
			return fmt.Errorf("section %q has negative bar count", s.Name)
		}
	}
	return nil
}

// TotalBeats is the requested duration expressed in beats at the request tempo.
func (r MusicalRequest) TotalBeats() float64 {
	return r.Duration * float64(r.Tempo)
}

// BeatsPerBar returns the numerator of the time signature.
func (r MusicalRequest) BeatsPerBar() int {
	n, err := parseTimeSignature(r.TimeSignature)
	if err != nil {
		return 4
	}
	return n
}

// TotalBars rounds the requested duration up to whole bars.
func (r MusicalRequest) TotalBars() int {
	return int(math.Ceil(r.TotalBeats() / float64(r.BeatsPerBar())))
}

// FullGenre joins genre and subgenre, e.g. "jazz bebop".
func (r MusicalRequest) FullGenre() string {
	if r.Subgenre == "" {
		return r.Genre
	}
	return r.Genre + " " + r.Subgenre
}

func parseTimeSignature(ts string) (int, error) {
	parts := strings.Split(ts, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time signature %q", ts)
	}
	num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || num <= 0 || num > 16 {
		return 0, fmt.Errorf("invalid time signature %q", ts)
	}
	den, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || den <= 0 {
		return 0, fmt.Errorf("invalid time signature %q", ts)
	}
	return num, nil
}

func normalizeWord(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}
