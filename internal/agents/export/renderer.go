package export

import (
	"context"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// Renderer turns a finished context into one artifact. prior holds the
// artifacts earlier renderers produced for the same run.
type Renderer interface {
	Name() string
	Render(ctx context.Context, gctx *models.GenerationContext, prior []models.Artifact) (models.Artifact, error)
}
