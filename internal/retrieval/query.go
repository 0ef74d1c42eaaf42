package retrieval

import (
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

const maxDescribedChords = 8

// QueryText renders the request descriptors that are embedded for retrieval.
// The layout mirrors DescribePattern so queries and indexed patterns share a vocabulary.
func QueryText(req models.MusicalRequest) string {
	parts := []string{"Genre: " + req.FullGenre()}
	if req.Artist != "" {
		parts = append(parts, "Artist style: "+req.Artist)
	}
	if req.Mood != "" {
		parts = append(parts, "Mood: "+req.Mood)
	}
	if len(req.Instruments) > 0 {
		parts = append(parts, "Instruments: "+strings.Join(req.Instruments, ", "))
	}
	parts = append(parts, fmt.Sprintf("Tempo: %d BPM", req.Tempo))
	return strings.Join(parts, " | ")
}

// DescribePattern renders the text that is embedded when a pattern is indexed.
func DescribePattern(p models.Pattern) string {
	parts := []string{"Genre: " + p.Genre}
	if p.Data.Artist != "" {
		parts = append(parts, "Artist style: "+p.Data.Artist)
	}
	if len(p.Instruments) > 0 {
		parts = append(parts, "Instruments: "+strings.Join(p.Instruments, ", "))
	}
	if p.Data.Tempo > 0 {
		parts = append(parts, fmt.Sprintf("Tempo: %d BPM", p.Data.Tempo))
	}

	switch p.Kind {
	case models.KindChordProgression:
		chords := p.Data.Chords
		if len(chords) > maxDescribedChords {
			chords = chords[:maxDescribedChords]
		}
		parts = append(parts, "Chord progression: "+strings.Join(chords, " -> "))
	case models.KindMelodicPhrase:
		parts = append(parts, fmt.Sprintf("Starting pitch: %d", p.Data.StartPitch))
		if len(p.Data.Intervals) > 0 {
			parts = append(parts, fmt.Sprintf("Average interval: %.1f semitones", averageAbs(p.Data.Intervals)))
			parts = append(parts, fmt.Sprintf("Maximum leap: %d semitones", maxAbs(p.Data.Intervals)))
			parts = append(parts, "Melodic style: "+melodicStyle(p.Data.Intervals))
		}
	case models.KindSegment:
		if len(p.Data.Chords) > 0 {
			parts = append(parts, fmt.Sprintf("Harmonic cycle: %d chords", len(p.Data.Chords)))
		}
	}

	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	return strings.Join(parts, " | ")
}

func averageAbs(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += abs(x)
	}
	return float64(sum) / float64(len(xs))
}

func maxAbs(xs []int) int {
	m := 0
	for _, x := range xs {
		if abs(x) > m {
			m = abs(x)
		}
	}
	return m
}

// melodicStyle classifies a phrase as stepwise, mixed or leaping.
func melodicStyle(intervals []int) string {
	avg := averageAbs(intervals)
	switch {
	case avg <= 2:
		return "stepwise"
	case avg <= 4:
		return "mixed"
	default:
		return "leaping"
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
