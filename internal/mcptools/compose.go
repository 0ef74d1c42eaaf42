package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

// Composer runs one composition. *pipeline.Controller satisfies it.
type Composer interface {
	Run(ctx context.Context, input models.RequestInput) (*pipeline.RunResult, error)
}

// ComposeTool handles the compose MCP tool.
type ComposeTool struct {
	composer Composer
}

func NewComposeTool(composer Composer) *ComposeTool {
	return &ComposeTool{composer: composer}
}

// Definition returns the MCP tool definition for compose.
func (t *ComposeTool) Definition() mcp.Tool {
	return mcp.NewTool("compose",
		mcp.WithDescription(
			"Compose a multi-track MIDI piece from a description or explicit parameters. "+
				"Returns the run summary and the path of the exported MIDI file.",
		),
		mcp.WithString("description",
			mcp.Description("Free-text request, e.g. 'a mellow jazz ballad at 80 bpm with piano and bass'"),
		),
		mcp.WithString("genre", mcp.Description("Genre, e.g. jazz, rock, electronic")),
		mcp.WithString("mood", mcp.Description("Mood, e.g. happy, melancholic")),
		mcp.WithNumber("tempo", mcp.Description("Tempo in BPM")),
		mcp.WithNumber("duration", mcp.Description("Length in minutes")),
		mcp.WithArray("instruments",
			mcp.Description("Instruments to arrange for"),
			mcp.WithStringItems(),
		),
		mcp.WithString("artist", mcp.Description("Reference artist for style")),
		mcp.WithString("key", mcp.Description("Key, e.g. 'A minor'")),
		mcp.WithBoolean("vocals", mcp.Description("Add a vocal line")),
		mcp.WithString("lyrics", mcp.Description("Lyrics for the vocal line; implies vocals")),
	)
}

// Handle processes the compose tool call.
func (t *ComposeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := composeInput(req)
	if input.Description == "" && input.Params == nil {
		return mcp.NewToolResultError("provide a 'description' or at least one parameter"), nil
	}

	result, err := t.composer.Run(ctx, input)
	if err != nil {
		var stageErr *pipeline.StageError
		if result != nil && errors.As(err, &stageErr) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"composition failed in %s (%s): %s", result.FailedState, stageErr.Kind, result.Cause,
			)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("composition failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatRun(result)), nil
}

func composeInput(req mcp.CallToolRequest) models.RequestInput {
	params := models.RequestParams{
		Genre:       req.GetString("genre", ""),
		Mood:        req.GetString("mood", ""),
		Tempo:       int(numberArg(req, "tempo", 0)),
		Duration:    numberArg(req, "duration", 0),
		Instruments: stringsArg(req, "instruments"),
		Artist:      req.GetString("artist", ""),
		Key:         req.GetString("key", ""),
		Vocals:      boolArg(req, "vocals", false),
		Lyrics:      req.GetString("lyrics", ""),
	}
	if params.Lyrics != "" {
		params.Vocals = true
	}

	input := models.RequestInput{Description: strings.TrimSpace(req.GetString("description", ""))}
	if hasParams(params) {
		input.Params = &params
	}
	return input
}

func hasParams(p models.RequestParams) bool {
	return p.Genre != "" || p.Mood != "" || p.Tempo != 0 || p.Duration != 0 ||
		len(p.Instruments) > 0 || p.Artist != "" || p.Key != "" || p.Vocals
}

func formatRun(r *pipeline.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished (%s) in %s\n", r.RunID, r.State, r.Duration.Round(time.Millisecond))

	if req := r.Request; req != nil {
		fmt.Fprintf(&b, "Request: %s, %s, %d bpm, %s, %.1f min, vocals=%t\n",
			req.Genre, req.Mood, req.Tempo, req.Key, req.Duration, req.Vocals)
	}
	if p := r.Patterns; p != nil {
		fmt.Fprintf(&b, "Patterns: tier %d, %d patterns, fallback=%t\n", p.Tier, len(p.Patterns), p.IsFallback)
	}
	if c := r.Coverage; c != nil {
		fmt.Fprintf(&b, "Melody: %.0f of %.0f beats, %d repeats\n", c.FinalBeats, c.TargetBeats, c.Repeats)
	}
	if tl := r.Timeline; tl != nil {
		fmt.Fprintf(&b, "Tracks (%d, %.0f beats):\n", len(tl.Tracks), tl.TotalBeats)
		for _, tr := range tl.Tracks {
			fmt.Fprintf(&b, "  - %s: %d notes (channel %d)\n", tr.Name, len(tr.Notes), tr.Channel+1)
		}
	}
	if path := r.MIDIPath(); path != "" {
		fmt.Fprintf(&b, "MIDI: %s\n", path)
	}
	if len(r.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	return b.String()
}
