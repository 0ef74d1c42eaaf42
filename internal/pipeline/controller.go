package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

// RunResult is what a run reports, whether it reached Done or Failed.
type RunResult struct {
	RunID       string        `json:"run_id"`
	TraceID     string        `json:"trace_id,omitempty"`
	State       State         `json:"state"`
	FailedState State         `json:"failed_state,omitempty"`
	Cause       string        `json:"cause,omitempty"`
	Visited     []State       `json:"visited"`
	Warnings    []string      `json:"warnings,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`

	Request  *models.MusicalRequest `json:"request,omitempty"`
	Patterns *models.PatternSet     `json:"-"`
	Coverage *models.CoverageReport `json:"coverage,omitempty"`
	Timeline *models.Timeline       `json:"-"`
	Export   *models.ExportResult   `json:"export,omitempty"`
}

// Succeeded reports whether the run reached Done.
func (r *RunResult) Succeeded() bool {
	return r != nil && r.State == StateDone
}

// MIDIPath returns the path of the exported MIDI file, if any.
func (r *RunResult) MIDIPath() string {
	if r == nil || r.Export == nil {
		return ""
	}
	for _, a := range r.Export.Artifacts {
		if a.Path != "" {
			return a.Path
		}
	}
	return ""
}

// Controller drives one GenerationContext through the state machine. It holds
// no musical knowledge: stages produce outputs, the controller merges them.
type Controller struct {
	stages   map[State]Stage
	recorder *metrics.Recorder
	langfuse *observability.LangfuseClient
	newRunID func() string
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder sends stage and run metrics to r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLangfuse opens one trace per run with a span per state.
func WithLangfuse(lf *observability.LangfuseClient) Option {
	return func(c *Controller) { c.langfuse = lf }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(c *Controller) { c.newRunID = fn }
}

// NewController creates a controller. Every stage state needs a stage.
func NewController(stages map[State]Stage, opts ...Option) (*Controller, error) {
	for _, s := range StageStates() {
		if stages[s] == nil {
			return nil, fmt.Errorf("no stage for state %s", s)
		}
	}
	c := &Controller{
		stages:   stages,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run executes one composition. On failure the result is in the Failed state
// and the returned error is a *StageError. Partial output is discarded.
func (c *Controller) Run(ctx context.Context, input models.RequestInput) (*RunResult, error) {
	gctx := models.NewGenerationContext(c.newRunID(), input)
	result := &RunResult{RunID: gctx.RunID, StartedAt: time.Now().UTC()}

	trace := c.langfuse.StartTrace(ctx, "composition", map[string]interface{}{"run_id": gctx.RunID})
	defer trace.Finish()
	result.TraceID = trace.ID()
	ctx = observability.WithTrace(ctx, trace)

	span := sentry.StartSpan(ctx, "pipeline.run")
	span.SetTag("run_id", gctx.RunID)
	defer span.Finish()
	ctx = span.Context()

	log.Printf("🎼 Run %s started", gctx.RunID)

	state := StateParseInput
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return c.fail(ctx, result, gctx, state, err)
		}
		result.Visited = append(result.Visited, state)
		if err := c.step(ctx, trace, state, gctx); err != nil {
			return c.fail(ctx, result, gctx, state, err)
		}
		state = Next(state, gctx)
	}

	result.State = StateDone
	result.Warnings = gctx.Warnings
	result.Request = gctx.Request
	result.Patterns = gctx.Patterns
	result.Coverage = gctx.Coverage
	result.Timeline = gctx.Timeline
	result.Export = gctx.Export
	result.Duration = time.Since(result.StartedAt)

	span.Status = sentry.SpanStatusOK
	c.recorder.RecordComposition(ctx, result.Duration, true, wantsVocals(gctx))
	log.Printf("✅ Run %s done in %v (%d warnings)", gctx.RunID, result.Duration, len(result.Warnings))
	return result, nil
}

// step runs the stage for state and merges its output.
func (c *Controller) step(ctx context.Context, trace *observability.Trace, state State, gctx *models.GenerationContext) error {
	lfSpan := trace.Span(string(state), nil)
	started := time.Now()

	out, err := c.stages[state].Generate(ctx, gctx)
	if err == nil {
		err = merge(gctx, state, out)
	}

	duration := time.Since(started)
	lfSpan.End(summarize(out, err), err)
	logger.LogStage(ctx, gctx.RunID, string(state), duration, err)
	c.recorder.RecordStage(ctx, string(state), duration, err)
	if err != nil {
		return err
	}

	if w, ok := out.(models.Warner); ok {
		for _, msg := range w.Warnings() {
			logger.Warn("Pipeline stage degraded", logger.Fields{"run_id": gctx.RunID, "state": string(state), "warning": msg})
			gctx.Warnings = append(gctx.Warnings, msg)
		}
	}
	return nil
}

func (c *Controller) fail(ctx context.Context, result *RunResult, gctx *models.GenerationContext, state State, cause error) (*RunResult, error) {
	stageErr := newStageError(state, cause)

	result.State = StateFailed
	result.FailedState = state
	result.Cause = cause.Error()
	result.Warnings = gctx.Warnings
	result.Request = gctx.Request
	result.Duration = time.Since(result.StartedAt)

	c.recorder.RecordComposition(ctx, result.Duration, false, wantsVocals(gctx))
	log.Printf("❌ Run %s failed in %s: %v", gctx.RunID, state, cause)
	return result, stageErr
}

// merge writes out into the slot owned by state. A stage may only fill its
// own slot, and only once.
func merge(gctx *models.GenerationContext, state State, out models.SectionOutput) error {
	if out == nil {
		return fmt.Errorf("stage returned no output")
	}
	want := stateSlots[state]
	if out.Slot() != want {
		return fmt.Errorf("stage wrote slot %q, owns %q", out.Slot(), want)
	}
	if gctx.Filled(want) {
		return fmt.Errorf("slot %q already filled", want)
	}

	switch o := out.(type) {
	case models.ParsedRequest:
		gctx.Request = &o.Request
	case models.RetrievedPatterns:
		gctx.Patterns = &o.Set
	case models.ArtistContext:
		gctx.Artist = &o.Profile
	case models.StructurePlan:
		if len(o.Sections) == 0 {
			return fmt.Errorf("structure has no sections")
		}
		gctx.Structure = o.Sections
	case models.ChordSection:
		gctx.Chords = &o
	case models.MelodySection:
		gctx.Melody = &o.Track
	case models.InstrumentSection:
		if o.Tracks == nil {
			o.Tracks = []models.Track{}
		}
		gctx.Instruments = o.Tracks
	case models.DrumSection:
		gctx.Drums = &o.Track
	case models.VocalSection:
		gctx.Vocals = &o
	case models.CoverageSection:
		gctx.Coverage = &o.Report
	case models.SynthSection:
		gctx.Timeline = &o.Timeline
	case models.ExportSection:
		gctx.Export = &o.Result
	default:
		return fmt.Errorf("unknown output type %T", out)
	}
	return nil
}

// summarize is the Langfuse span output for a state.
func summarize(out models.SectionOutput, err error) map[string]interface{} {
	if err != nil || out == nil {
		return nil
	}
	s := map[string]interface{}{"slot": string(out.Slot())}
	if w, ok := out.(models.Warner); ok {
		if warnings := w.Warnings(); len(warnings) > 0 {
			s["warnings"] = warnings
		}
	}
	return s
}
