package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

var (
	knownGenres      = []string{"jazz", "rock", "pop", "classical", "blues", "country", "electronic", "hip-hop", "folk", "r&b", "metal", "punk"}
	knownMoods       = []string{"happy", "sad", "energetic", "relaxed", "dramatic", "peaceful", "aggressive", "romantic"}
	knownInstruments = []string{"piano", "guitar", "drums", "bass", "saxophone", "violin", "trumpet", "flute", "cello"}

	// longest phrases first so "very slow" is not read as "slow"
	tempoWords = []struct {
		word string
		bpm  int
	}{
		{"very slow", 60},
		{"very fast", 180},
		{"moderate", 100},
		{"upbeat", 140},
		{"medium", 120},
		{"slow", 80},
		{"fast", 160},
	}

	durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:minutes?|mins?)\b`)
	secondsPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:seconds?|secs?)\b`)
	bpmPattern      = regexp.MustCompile(`(\d{2,3})\s*bpm\b`)
	artistPattern   = regexp.MustCompile(`(?:like|similar to|in the style of)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	vocalsPattern   = regexp.MustCompile(`\b(?:vocals?|singing|singer|lyrics|sung)\b`)
	keyPattern      = regexp.MustCompile(`\b(?:in\s+)?([A-G][#b]?)\s+(major|minor)\b`)
	meterPattern    = regexp.MustCompile(`\b([2-9]|1[0-6])/(2|4|8|16)\b`)
)

// ParseDescription extracts request parameters from free text without a model.
// Anything it cannot find is left zero so defaults apply later.
func ParseDescription(description string) models.RequestParams {
	lower := strings.ToLower(description)
	var p models.RequestParams

	p.Genre = firstWord(lower, knownGenres)
	p.Mood = firstWord(lower, knownMoods)

	if m := bpmPattern.FindStringSubmatch(lower); m != nil {
		p.Tempo, _ = strconv.Atoi(m[1])
	} else {
		for _, tw := range tempoWords {
			if containsWord(lower, tw.word) {
				p.Tempo = tw.bpm
				break
			}
		}
	}

	if m := durationPattern.FindStringSubmatch(lower); m != nil {
		p.Duration, _ = strconv.ParseFloat(m[1], 64)
	} else if m := secondsPattern.FindStringSubmatch(lower); m != nil {
		secs, _ := strconv.ParseFloat(m[1], 64)
		p.Duration = secs / 60
	}

	for _, inst := range knownInstruments {
		if containsWord(lower, inst) {
			p.Instruments = append(p.Instruments, inst)
		}
	}

	if m := artistPattern.FindStringSubmatch(description); m != nil {
		p.Artist = strings.TrimSpace(m[1])
	}
	p.Vocals = vocalsPattern.MatchString(lower)

	if m := keyPattern.FindStringSubmatch(description); m != nil {
		p.Key = m[1] + " " + strings.ToUpper(m[2][:1]) + m[2][1:]
	}
	if m := meterPattern.FindStringSubmatch(lower); m != nil {
		p.TimeSignature = m[0]
	}

	return p
}

func firstWord(text string, words []string) string {
	best, bestIdx := "", -1
	for _, w := range words {
		idx := wordIndex(text, w)
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = w, idx
		}
	}
	return best
}

func containsWord(text, word string) bool {
	return wordIndex(text, word) >= 0
}

// wordIndex finds word delimited by non-letters, so "pop" does not match "popular".
func wordIndex(text, word string) int {
	from := 0
	for {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(word)
		if (i == 0 || !isLetter(text[i-1])) && (end == len(text) || !isLetter(text[end])) {
			return i
		}
		from = i + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// mergeParams overlays explicit on parsed: every non-zero explicit field wins.
func mergeParams(parsed models.RequestParams, explicit *models.RequestParams) models.RequestParams {
	if explicit == nil {
		return parsed
	}
	out := parsed
	e := *explicit
	if e.Genre != "" {
		out.Genre = e.Genre
	}
	if e.Subgenre != "" {
		out.Subgenre = e.Subgenre
	}
	if e.Mood != "" {
		out.Mood = e.Mood
	}
	if e.Tempo != 0 {
		out.Tempo = e.Tempo
	}
	if e.Duration != 0 {
		out.Duration = e.Duration
	}
	if len(e.Instruments) > 0 {
		out.Instruments = e.Instruments
	}
	if e.Artist != "" {
		out.Artist = e.Artist
	}
	if e.Vocals {
		out.Vocals = true
	}
	if e.VocalStyle != "" {
		out.VocalStyle = e.VocalStyle
	}
	if e.Lyrics != "" {
		out.Lyrics = e.Lyrics
	}
	if e.Key != "" {
		out.Key = e.Key
	}
	if e.TimeSignature != "" {
		out.TimeSignature = e.TimeSignature
	}
	if len(e.Sections) > 0 {
		out.Sections = e.Sections
	}
	return out
}
