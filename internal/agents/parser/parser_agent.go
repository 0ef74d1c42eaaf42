package parser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/prompt"
)

// Request sources reported in models.ParsedRequest.
const (
	SourceParams    = "params"
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
)

// ErrNoInput is returned when a run has neither a description nor parameters.
var ErrNoInput = errors.New("no description or parameters to compose from")

// Agent turns the run input into a validated MusicalRequest.
type Agent struct {
	client  *llm.Client
	prompts *prompt.Builder
}

// NewParserAgent creates a parser agent. A nil or unconfigured client means
// descriptions are parsed heuristically.
func NewParserAgent(client *llm.Client) *Agent {
	return &Agent{client: client, prompts: prompt.NewPromptBuilder()}
}

// Generate implements the ParseInput stage.
func (a *Agent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	in := gctx.Input
	if in.IsEmpty() {
		return nil, ErrNoInput
	}

	var (
		parsed   models.RequestParams
		source   = SourceParams
		degraded error
	)
	if desc := strings.TrimSpace(in.Description); desc != "" {
		parsed, source, degraded = a.parseDescription(ctx, desc)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	req, err := models.NewMusicalRequest(mergeParams(parsed, in.Params))
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	log.Printf("📝 Request parsed (%s): genre=%s mood=%s tempo=%d duration=%.2fmin instruments=%v vocals=%t",
		source, req.FullGenre(), req.Mood, req.Tempo, req.Duration, req.Instruments, req.Vocals)

	return models.ParsedRequest{Request: req, Source: source, Degraded: degraded}, nil
}

// parseDescription asks the model first and falls back to pattern matching.
// The returned error is only informational.
func (a *Agent) parseDescription(ctx context.Context, desc string) (models.RequestParams, string, error) {
	if !a.client.CanGenerate() {
		return ParseDescription(desc), SourceHeuristic, nil
	}

	var params models.RequestParams
	err := a.client.Complete(ctx, "parse_request",
		a.prompts.Loader().GetRequestParserPrompt(),
		a.prompts.BuildRequestPrompt(desc),
		llm.GetRequestParseSchema(),
		&params,
	)
	if err != nil {
		log.Printf("⚠️ Request parsing via model failed, using heuristics: %v", err)
		return ParseDescription(desc), SourceHeuristic, fmt.Errorf("model parse failed: %w", err)
	}

	// the model leaves fields empty when unsure; fill them from the text
	return mergeParams(ParseDescription(desc), &params), SourceLLM, nil
}
