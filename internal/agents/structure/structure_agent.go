package structure

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// DefaultTemplate is the song form used when neither sections nor lyric markers are given.
var DefaultTemplate = []string{"intro", "verse", "chorus", "verse", "chorus", "bridge", "chorus", "outro"}

// relative length of a section in the default allocation
var sectionWeights = map[string]int{
	"verse":  2,
	"chorus": 2,
}

var sectionEnergy = map[string]int{
	"verse":  5,
	"chorus": 8,
	"bridge": 6,
}

const defaultEnergy = 6

var lyricMarker = regexp.MustCompile(`(?m)^\s*\[([A-Za-z][A-Za-z \-]*?)\s*\d*\]`)

// Agent plans the song form: named, bar-aligned, contiguous sections covering
// exactly the requested duration in whole bars.
type Agent struct{}

// NewStructureAgent creates a structure agent
func NewStructureAgent() *Agent {
	return &Agent{}
}

// Generate implements the PlanStructure stage.
func (a *Agent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil {
		return nil, fmt.Errorf("structure needs a request")
	}
	sections, source := Plan(*gctx.Request)
	if len(sections) == 0 {
		return nil, fmt.Errorf("no sections planned")
	}

	log.Printf("🧱 Structure from %s: %d sections, %.0f beats", source, len(sections), sections[len(sections)-1].EndBeats)
	return models.StructurePlan{Sections: sections}, nil
}

// Plan lays out sections from explicit specs, lyric markers or the default template, in that order.
func Plan(req models.MusicalRequest) ([]models.CompositionSection, string) {
	totalBars := req.TotalBars()
	if totalBars < 1 {
		totalBars = 1
	}

	var (
		names  []string
		bars   []int
		source string
	)
	switch {
	case len(req.Sections) > 0:
		source = "request"
		names, bars = explicitBars(req.Sections, totalBars)
	case len(LyricSections(req.Lyrics)) > 0:
		source = "lyrics"
		names = LyricSections(req.Lyrics)
		if len(names) > totalBars {
			names = names[:totalBars]
		}
		bars = allocate(names, totalBars)
	default:
		source = "template"
		names = templateFor(totalBars)
		bars = allocate(names, totalBars)
	}

	return layout(names, bars, req.BeatsPerBar()), source
}

// LyricSections returns the section names marked in lyrics, e.g. "[Verse 1]" -> "verse".
func LyricSections(lyrics string) []string {
	var names []string
	for _, m := range lyricMarker.FindAllStringSubmatch(lyrics, -1) {
		names = append(names, strings.ToLower(strings.TrimSpace(m[1])))
	}
	return names
}

// Energy returns the energy level (1-10) of a section name.
func Energy(name string) int {
	if e, ok := sectionEnergy[name]; ok {
		return e
	}
	return defaultEnergy
}

// templateFor shrinks the default form for songs with fewer bars than sections.
func templateFor(totalBars int) []string {
	switch {
	case totalBars >= len(DefaultTemplate):
		return DefaultTemplate
	case totalBars >= 2:
		return []string{"verse", "chorus"}
	default:
		return []string{"verse"}
	}
}

// explicitBars keeps requested bar counts, splits the rest among sections
// without one, and lets the last section absorb any shortfall. Sections past
// totalBars are dropped and an overshoot is taken from the longest sections.
func explicitBars(specs []models.SectionSpec, totalBars int) ([]string, []int) {
	if len(specs) > totalBars {
		specs = specs[:totalBars]
	}
	names := make([]string, len(specs))
	bars := make([]int, len(specs))

	used, open := 0, 0
	for i, s := range specs {
		names[i] = s.Name
		bars[i] = s.Bars
		used += s.Bars
		if s.Bars == 0 {
			open++
		}
	}

	if open > 0 {
		remaining := totalBars - used
		share, extra := 0, 0
		if remaining > 0 {
			share, extra = remaining/open, remaining%open
		}
		for i := range bars {
			if bars[i] != 0 {
				continue
			}
			bars[i] = share
			if extra > 0 {
				bars[i]++
				extra--
			}
			if bars[i] < 1 {
				bars[i] = 1
			}
		}
	}

	sum := 0
	for _, b := range bars {
		sum += b
	}
	if sum < totalBars {
		bars[len(bars)-1] += totalBars - sum
	}
	for ; sum > totalBars; sum-- {
		longest := 0
		for i := range bars {
			if bars[i] > bars[longest] {
				longest = i
			}
		}
		bars[longest]--
	}
	return names, bars
}

// allocate splits totalBars by section weight with the largest-remainder
// method; every section gets at least one bar. Requires totalBars >= len(names).
func allocate(names []string, totalBars int) []int {
	weights := make([]int, len(names))
	sumW := 0
	for i, n := range names {
		w := sectionWeights[n]
		if w == 0 {
			w = 1
		}
		weights[i] = w
		sumW += w
	}

	bars := make([]int, len(names))
	remainders := make([]int, len(names))
	assigned := 0
	for i, w := range weights {
		bars[i] = totalBars * w / sumW
		remainders[i] = totalBars * w % sumW
		if bars[i] < 1 {
			bars[i] = 1
			remainders[i] = 0
		}
		assigned += bars[i]
	}

	for assigned < totalBars {
		best := 0
		for i := range remainders {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		bars[best]++
		remainders[best] = -1
		assigned++
		if allBelowZero(remainders) {
			for i := range remainders {
				remainders[i] = weights[i]
			}
		}
	}
	for assigned > totalBars {
		longest := 0
		for i := range bars {
			if bars[i] > bars[longest] {
				longest = i
			}
		}
		if bars[longest] <= 1 {
			break
		}
		bars[longest]--
		assigned--
	}
	return bars
}

func allBelowZero(xs []int) bool {
	for _, x := range xs {
		if x >= 0 {
			return false
		}
	}
	return true
}

func layout(names []string, bars []int, beatsPerBar int) []models.CompositionSection {
	sections := make([]models.CompositionSection, 0, len(names))
	start := 0.0
	for i, name := range names {
		length := float64(bars[i] * beatsPerBar)
		sections = append(sections, models.CompositionSection{
			Name:       name,
			StartBeats: start,
			EndBeats:   start + length,
			Energy:     Energy(name),
		})
		start += length
	}
	return sections
}
