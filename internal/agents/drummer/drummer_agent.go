package drummer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/prompt"
	"github.com/getsentry/sentry-go"
)

const (
	stepBeats     = 0.25 // one grid character
	crashVelocity = 110
)

// DrummerAgent writes the drum track from a grid DSL groove, optionally
// asking the model for one first.
type DrummerAgent struct {
	client  *llm.Client
	prompts *prompt.Builder
}

// NewDrummerAgent creates a drummer agent. A nil client uses genre grooves only.
func NewDrummerAgent(client *llm.Client) *DrummerAgent {
	return &DrummerAgent{client: client, prompts: prompt.NewPromptBuilder()}
}

// Generate implements the GenerateDrums stage.
func (a *DrummerAgent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil || len(gctx.Structure) == 0 {
		return nil, fmt.Errorf("drums need a request and a structure")
	}
	req := *gctx.Request

	span := sentry.StartSpan(ctx, "drummer.generate")
	defer span.Finish()

	out := models.DrumSection{Track: models.Track{
		Name:    "Drums",
		Channel: models.ChannelDrums,
		IsDrum:  true,
	}}
	if !wantsDrums(req) {
		log.Printf("🥁 No drums for %s without a requested kit", req.Genre)
		return out, nil
	}

	parser, err := NewDrummerDSLParser()
	if err != nil {
		return nil, err
	}

	dsl, lines, degraded := a.modelGroove(ctx, req, gctx.Structure, parser)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lines == nil {
		dsl = GrooveDSL(req.Genre)
		if lines, err = parser.ParseDSL(dsl); err != nil {
			return nil, fmt.Errorf("built-in groove for %s: %w", req.Genre, err)
		}
	}

	out.DSL = dsl
	out.Degraded = degraded
	out.Track.Notes = Render(lines, gctx.Structure, req.BeatsPerBar())
	if len(out.Track.Notes) == 0 {
		return nil, fmt.Errorf("drum track is empty")
	}

	span.SetTag("lines", fmt.Sprintf("%d", len(lines)))
	log.Printf("🥁 Drums: %d lines, %d hits", len(lines), len(out.Track.Notes))
	return out, nil
}

// modelGroove returns nil lines when the model is unavailable or its DSL is unusable.
func (a *DrummerAgent) modelGroove(ctx context.Context, req models.MusicalRequest, sections []models.CompositionSection, parser *DrummerDSLParser) (string, []DrumLine, error) {
	if !a.client.CanGenerate() {
		return "", nil, nil
	}

	dsl, err := a.client.CompleteDSL(ctx, "drummer",
		a.prompts.Loader().GetDrummerPrompt(),
		a.prompts.BuildDrummerPrompt(req, sections),
		&llm.CFGConfig{
			ToolName:    "drummer_dsl",
			Description: "Drum groove for every bar plus a fill for section ends",
			Grammar:     llm.GetDrummerDSLGrammar(),
			Syntax:      "lark",
		},
	)
	if err != nil {
		log.Printf("⚠️ Drummer model failed, using %s groove: %v", req.Genre, err)
		return "", nil, fmt.Errorf("drum DSL unavailable: %w", err)
	}

	lines, err := parser.ParseDSL(dsl)
	if err != nil {
		log.Printf("⚠️ Drummer DSL rejected, using %s groove: %v", req.Genre, err)
		return "", nil, fmt.Errorf("drum DSL invalid: %w", err)
	}

	if !hasFill(lines) {
		fills, _ := parser.ParseDSL(defaultFill)
		lines = append(lines, fills...)
		dsl += "\n" + defaultFill
	}
	return dsl, lines, nil
}

// Render tiles pattern lines over every bar and swaps in fill lines from the
// first fill hit of each section's last bar. A crash marks every section change.
func Render(lines []DrumLine, sections []models.CompositionSection, beatsPerBar int) []models.NoteEvent {
	steps := beatsPerBar * 4
	bar := float64(beatsPerBar)

	var patterns, fills []DrumLine
	for _, l := range lines {
		if l.Fill {
			fills = append(fills, l)
		} else {
			patterns = append(patterns, l)
		}
	}
	fillFrom := steps
	for _, f := range fills {
		if i := firstHit(f.Grid); i >= 0 && i < fillFrom {
			fillFrom = i
		}
	}

	var notes []models.NoteEvent
	for si, sec := range sections {
		for start := sec.StartBeats; start < sec.EndBeats; start += bar {
			isFillBar := len(fills) > 0 && start+bar >= sec.EndBeats && sec.LengthBeats() > bar
			limit := steps
			if isFillBar {
				limit = fillFrom
			}
			for _, l := range patterns {
				notes = append(notes, gridNotes(l, start, limit)...)
			}
			if isFillBar {
				for _, l := range fills {
					notes = append(notes, gridNotes(l, start, steps)...)
				}
			}
		}
		if si > 0 {
			notes = append(notes, models.NoteEvent{
				Pitch:         drumNotes["crash"],
				StartBeats:    sec.StartBeats,
				DurationBeats: stepBeats,
				Velocity:      crashVelocity,
				Channel:       models.ChannelDrums,
			})
		}
	}
	return notes
}

func gridNotes(l DrumLine, barStart float64, limit int) []models.NoteEvent {
	var notes []models.NoteEvent
	for i, c := range l.Grid {
		if i >= limit {
			break
		}
		vel := 0
		switch c {
		case 'x':
			vel = l.Velocity
		case 'X':
			vel = velocityAccent
		case 'o':
			vel = velocityGhost
		default:
			continue
		}
		notes = append(notes, models.NoteEvent{
			Pitch:         drumNotes[l.Drum],
			StartBeats:    barStart + float64(i)*stepBeats,
			DurationBeats: stepBeats,
			Velocity:      vel,
			Channel:       models.ChannelDrums,
		})
	}
	return notes
}

func firstHit(grid string) int {
	return strings.IndexAny(grid, "xXo")
}

func hasFill(lines []DrumLine) bool {
	for _, l := range lines {
		if l.Fill {
			return true
		}
	}
	return false
}

// classical pieces only get drums when a kit is asked for
func wantsDrums(req models.MusicalRequest) bool {
	for _, inst := range req.Instruments {
		switch inst {
		case "drums", "drum", "percussion", "drum kit", "kit":
			return true
		}
	}
	return req.Genre != "classical"
}
