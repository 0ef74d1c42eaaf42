package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// Agent runs every renderer over the finished timeline.
type Agent struct {
	renderers []Renderer
	now       func() time.Time
}

// NewExportAgent creates an export agent running renderers in order.
func NewExportAgent(renderers ...Renderer) *Agent {
	return &Agent{renderers: renderers, now: time.Now}
}

// Generate implements the Export stage. Any renderer failure fails the stage.
func (a *Agent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Timeline == nil {
		return nil, fmt.Errorf("export needs a timeline")
	}

	var artifacts []models.Artifact
	for _, r := range a.renderers {
		if err := ctx.Err(); err != nil {
			discard(artifacts)
			return nil, err
		}
		artifact, err := r.Render(ctx, gctx, artifacts)
		if err != nil {
			discard(artifacts)
			return nil, fmt.Errorf("%s renderer: %w", r.Name(), err)
		}
		log.Printf("💾 Exported %s %s%s", artifact.Kind, artifact.Path, artifact.ID)
		artifacts = append(artifacts, artifact)
	}

	return models.ExportSection{Result: models.ExportResult{
		Artifacts:  artifacts,
		ExportedAt: a.now().UTC(),
	}}, nil
}

// discard removes files written before a failure; a failed run has no output.
func discard(artifacts []models.Artifact) {
	for _, a := range artifacts {
		if a.Path == "" {
			continue
		}
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("⚠️ Failed to remove %s: %v", a.Path, err)
		}
	}
}
