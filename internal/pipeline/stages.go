package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/arranger"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/artist"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/drummer"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/export"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/melody"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/parser"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/structure"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/synth"
	"github.com/Conceptual-Machines/magda-composer/internal/agents/vocal"
	"github.com/Conceptual-Machines/magda-composer/internal/coverage"
	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
)

// Stage produces one section output from the context. Stages read the
// context and never write to it.
type Stage interface {
	Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error)

func (f StageFunc) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	return f(ctx, gctx)
}

// PatternRetriever is what RetrievePatterns needs. *retrieval.Retriever satisfies it.
type PatternRetriever interface {
	Retrieve(ctx context.Context, req models.MusicalRequest, kinds []models.PatternKind) (models.PatternSet, error)
}

// RetrievalStage runs the tiered retriever. Retrieval errors never fail the
// run; they are carried as a degraded warning.
type RetrievalStage struct {
	retriever PatternRetriever
	kinds     []models.PatternKind
	recorder  *metrics.Recorder
}

// NewRetrievalStage creates the RetrievePatterns stage for kinds (all kinds when empty).
func NewRetrievalStage(r PatternRetriever, recorder *metrics.Recorder, kinds ...models.PatternKind) *RetrievalStage {
	return &RetrievalStage{retriever: r, kinds: kinds, recorder: recorder}
}

func (s *RetrievalStage) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil {
		return nil, fmt.Errorf("retrieval needs a request")
	}
	set, err := s.retriever.Retrieve(ctx, *gctx.Request, s.kinds)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("retriever returned an empty pattern set")
	}

	retrieval.LogResult(gctx.RunID, set)
	s.recorder.RecordRetrieval(ctx, set.Tier, set.IsFallback)
	return models.RetrievedPatterns{Set: set, Degraded: err}, nil
}

// CoverageStage extends the melody motif to the song length.
type CoverageStage struct {
	opts coverage.Options
}

// NewCoverageStage creates the ValidateCoverage stage. BeatsPerBar is taken
// from the request.
func NewCoverageStage(opts coverage.Options) *CoverageStage {
	return &CoverageStage{opts: opts}
}

// Generate extends the melody to cover the request and the planned structure.
// An empty melody is replaced by the default phrase and extended once more.
func (s *CoverageStage) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil || gctx.Melody == nil {
		return nil, fmt.Errorf("%w: coverage needs a request and a melody", ErrValidationFailure)
	}
	req := gctx.Request

	target := req.TotalBeats()
	if n := len(gctx.Structure); n > 0 && gctx.Structure[n-1].EndBeats > target {
		target = gctx.Structure[n-1].EndBeats
	}

	opts := s.opts
	opts.BeatsPerBar = req.BeatsPerBar()

	substituted := false
	res, err := coverage.Extend(gctx.Melody.Notes, target, opts)
	if errors.Is(err, coverage.ErrEmptyMelody) {
		log.Printf("⚠️ Melody empty, substituting the default phrase")
		substituted = true
		res, err = coverage.Extend(coverage.DefaultPhrase(opts.BeatsPerBar), target, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailure, err)
	}

	track := *gctx.Melody
	track.Notes = res.Notes
	return models.CoverageSection{Report: models.CoverageReport{
		Melody:        track,
		OriginalBeats: res.OriginalBeats,
		TargetBeats:   res.TargetBeats,
		FinalBeats:    res.FinalBeats,
		Repeats:       res.Repeats,
		Substituted:   substituted,
	}}, nil
}

// Deps holds what the standard stage set is built from. Nil Client and
// Retriever are allowed: model-backed stages fall back to heuristics and
// retrieval serves the built-in patterns.
type Deps struct {
	Client    *llm.Client
	Retriever PatternRetriever
	Recorder  *metrics.Recorder
	Renderers []export.Renderer
	Coverage  coverage.Options
	MotifBars int
}

// DefaultStages wires every state to its stage.
func DefaultStages(d Deps) map[State]Stage {
	r := d.Retriever
	if r == nil {
		r = retrieval.New(nil, nil, retrieval.Options{})
	}
	return map[State]Stage{
		StateParseInput:          parser.NewParserAgent(d.Client),
		StateRetrievePatterns:    NewRetrievalStage(r, d.Recorder),
		StateApplyArtistContext:  artist.NewArtistAgent(d.Client),
		StatePlanStructure:       structure.NewStructureAgent(),
		StateGenerateChords:      arranger.NewChordAgent(),
		StateGenerateMelody:      melody.NewMelodyAgent(d.MotifBars),
		StateGenerateInstruments: arranger.NewInstrumentAgent(),
		StateGenerateDrums:       drummer.NewDrummerAgent(d.Client),
		StateGenerateVocals:      vocal.NewVocalAgent(d.Client),
		StateValidateCoverage:    NewCoverageStage(d.Coverage),
		StateSynthesize:          synth.NewAssembler(synth.DefaultGridBeats),
		StateExport:              export.NewExportAgent(d.Renderers...),
	}
}
