package export

import (
	"context"
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// ArtifactRunRecord is the kind of RunRecorder artifacts.
const ArtifactRunRecord = "run_record"

// RunStore persists run summaries.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.CompositionRun) error
}

// RunRecorder stores a summary of every exported run.
type RunRecorder struct {
	store RunStore
}

// NewRunRecorder creates a recorder over store.
func NewRunRecorder(store RunStore) *RunRecorder {
	return &RunRecorder{store: store}
}

func (r *RunRecorder) Name() string { return "run_record" }

func (r *RunRecorder) Render(ctx context.Context, gctx *models.GenerationContext, prior []models.Artifact) (models.Artifact, error) {
	run := Summarize(gctx)
	run.Status = "done"
	for _, a := range prior {
		if a.Kind == ArtifactMIDI {
			run.MIDIPath = a.Path
		}
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return models.Artifact{}, fmt.Errorf("failed to record run: %w", err)
	}
	return models.Artifact{Kind: ArtifactRunRecord, ID: run.RunID}, nil
}

// Summarize builds the run record for whatever the context holds so far.
func Summarize(gctx *models.GenerationContext) *models.CompositionRun {
	run := &models.CompositionRun{RunID: gctx.RunID}
	if req := gctx.Request; req != nil {
		run.Genre = req.Genre
		run.Tempo = req.Tempo
		run.Duration = req.Duration
		run.Vocals = req.Vocals
	}
	if set := gctx.Patterns; set != nil {
		run.Tier = set.Tier
		run.IsFallback = set.IsFallback
	}
	if tl := gctx.Timeline; tl != nil {
		run.TrackCount = len(tl.Tracks)
		run.TotalBeats = tl.TotalBeats
	}
	return run
}
