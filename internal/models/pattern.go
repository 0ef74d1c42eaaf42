package models

import "sort"

// PatternKind classifies a stored reference fragment.
type PatternKind string

const (
	KindSegment          PatternKind = "segment"
	KindChordProgression PatternKind = "chord_progression"
	KindMelodicPhrase    PatternKind = "melodic_phrase"
)

// AllPatternKinds lists every kind in retrieval order.
func AllPatternKinds() []PatternKind {
	return []PatternKind{KindSegment, KindChordProgression, KindMelodicPhrase}
}

// Valid reports whether k is a known pattern kind.
func (k PatternKind) Valid() bool {
	switch k {
	case KindSegment, KindChordProgression, KindMelodicPhrase:
		return true
	}
	return false
}

// Fallback tiers reached by retrieval.
const (
	TierExact   = 0 // genre and instrument filter
	TierGenre   = 1 // genre filter only
	TierGeneric = 2 // no metadata filter
	TierBuiltin = 3 // built-in patterns, backend unused
)

// BuiltinScore is the similarity assigned to built-in patterns so consumers can
// detect degraded quality.
const BuiltinScore = 0.0

// PatternData is the musical payload of a pattern.
type PatternData struct {
	Chords     []string  `json:"chords,omitempty"`
	Intervals  []int     `json:"intervals,omitempty"`
	StartPitch int       `json:"start_pitch,omitempty"`
	Rhythm     []float64 `json:"rhythm,omitempty"` // note durations in beats
	DrumGroove string    `json:"drum_groove,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	Tempo      int       `json:"tempo,omitempty"`
}

// Pattern is a retrieved reference fragment. Read-only once retrieved.
type Pattern struct {
	ID          string      `json:"id"`
	Kind        PatternKind `json:"kind"`
	Embedding   []float32   `json:"-"`
	Score       float64     `json:"score"`
	Source      string      `json:"source"`
	Instruments []string    `json:"instruments,omitempty"`
	Genre       string      `json:"genre"`
	Description string      `json:"description,omitempty"`
	Data        PatternData `json:"data"`
}

// PatternSet is the ranked retrieval result for one request.
type PatternSet struct {
	Patterns   []Pattern `json:"patterns"`
	IsFallback bool      `json:"is_fallback"`
	Tier       int       `json:"tier"`
}

// ByKind returns the patterns of one kind in set order.
func (s PatternSet) ByKind(kind PatternKind) []Pattern {
	var out []Pattern
	for _, p := range s.Patterns {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Best returns the highest-ranked pattern of a kind.
func (s PatternSet) Best(kind PatternKind) (Pattern, bool) {
	for _, p := range s.Patterns {
		if p.Kind == kind {
			return p, true
		}
	}
	return Pattern{}, false
}

// Len returns the number of patterns in the set.
func (s PatternSet) Len() int {
	return len(s.Patterns)
}

// CountByKind tallies patterns per kind.
func (s PatternSet) CountByKind() map[PatternKind]int {
	counts := make(map[PatternKind]int)
	for _, p := range s.Patterns {
		counts[p.Kind]++
	}
	return counts
}

// SortPatterns orders patterns by kind (retrieval order) then by descending score.
// Ties keep their input order.
func SortPatterns(patterns []Pattern) {
	rank := make(map[PatternKind]int)
	for i, k := range AllPatternKinds() {
		rank[k] = i
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		ri, rj := rank[patterns[i].Kind], rank[patterns[j].Kind]
		if ri != rj {
			return ri < rj
		}
		return patterns[i].Score > patterns[j].Score
	})
}
