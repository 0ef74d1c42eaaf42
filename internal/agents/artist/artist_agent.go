package artist

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/prompt"
)

// Agent looks up the style of the artist named in the request.
type Agent struct {
	client  *llm.Client
	prompts *prompt.Builder
}

// NewArtistAgent creates an artist agent. Without a configured client every
// named artist gets a generic profile.
func NewArtistAgent(client *llm.Client) *Agent {
	return &Agent{client: client, prompts: prompt.NewPromptBuilder()}
}

type profileResponse struct {
	StyleSummary        string   `json:"style_summary"`
	SignatureTechniques []string `json:"signature_techniques"`
	HarmonicTendencies  []string `json:"harmonic_tendencies"`
	TempoMin            int      `json:"tempo_min"`
	TempoMax            int      `json:"tempo_max"`
	Instrumentation     []string `json:"instrumentation"`
}

// Generate implements the ApplyArtistContext stage. It never fails on model
// errors; they degrade to a generic profile.
func (a *Agent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil {
		return nil, fmt.Errorf("artist context needs a request")
	}
	req := *gctx.Request
	if req.Artist == "" {
		return models.ArtistContext{}, nil
	}

	if !a.client.CanGenerate() {
		return models.ArtistContext{Profile: GenericProfile(req)}, nil
	}

	var resp profileResponse
	err := a.client.Complete(ctx, "artist_profile",
		a.prompts.Loader().GetArtistProfilePrompt(),
		a.prompts.BuildArtistPrompt(req.Artist, req.FullGenre()),
		llm.GetArtistProfileSchema(),
		&resp,
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("⚠️ Artist profile for %q failed: %v", req.Artist, err)
		return models.ArtistContext{
			Profile:  GenericProfile(req),
			Degraded: fmt.Errorf("artist profile unavailable: %w", err),
		}, nil
	}

	profile := models.ArtistProfile{
		Artist:              req.Artist,
		StyleSummary:        resp.StyleSummary,
		SignatureTechniques: resp.SignatureTechniques,
		HarmonicTendencies:  strings.Join(resp.HarmonicTendencies, "; "),
		TempoMin:            resp.TempoMin,
		TempoMax:            resp.TempoMax,
		Instrumentation:     resp.Instrumentation,
	}
	if profile.TempoMin > profile.TempoMax {
		profile.TempoMin, profile.TempoMax = profile.TempoMax, profile.TempoMin
	}

	log.Printf("🎤 Artist profile: %s (%d-%d BPM)", profile.Artist, profile.TempoMin, profile.TempoMax)
	return models.ArtistContext{Profile: profile}, nil
}

// GenericProfile stands in when no profile can be fetched.
func GenericProfile(req models.MusicalRequest) models.ArtistProfile {
	return models.ArtistProfile{
		Artist:          req.Artist,
		StyleSummary:    fmt.Sprintf("%s artist with a %s character", req.FullGenre(), req.Mood),
		TempoMin:        req.Tempo - 20,
		TempoMax:        req.Tempo + 20,
		Instrumentation: req.Instruments,
		Generic:         true,
	}
}
