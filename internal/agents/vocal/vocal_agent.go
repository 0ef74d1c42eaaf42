package vocal

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/arranger"
	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/prompt"
)

const (
	baseVelocity = 80
	noteBeats    = 1.0
	noteLength   = 0.9
	contour      = 5
)

// Lyric sources reported in logs
const (
	SourceRequest     = "request"
	SourceLLM         = "llm"
	SourcePlaceholder = "placeholder"
)

var (
	sectionMarker = regexp.MustCompile(`\[[^\]]*\]`)
	placeholders  = []string{"la", "da", "na", "oh", "yeah"}
)

// Agent sings one note per lyric token.
type Agent struct {
	client  *llm.Client
	prompts *prompt.Builder
}

// NewVocalAgent creates a vocal agent. Without a client, requests without
// lyrics are sung on placeholder syllables.
func NewVocalAgent(client *llm.Client) *Agent {
	return &Agent{client: client, prompts: prompt.NewPromptBuilder()}
}

type lyricsResponse struct {
	Sections []struct {
		Name  string   `json:"name"`
		Lines []string `json:"lines"`
	} `json:"sections"`
}

// Generate implements the GenerateVocals stage.
func (a *Agent) Generate(ctx context.Context, gctx *models.GenerationContext) (models.SectionOutput, error) {
	if gctx.Request == nil || len(gctx.Structure) == 0 {
		return nil, fmt.Errorf("vocals need a request and a structure")
	}
	req := *gctx.Request

	key, err := arranger.ParseKey(req.Key)
	if err != nil {
		return nil, fmt.Errorf("vocals: %w", err)
	}

	out := models.VocalSection{}
	source := SourceRequest
	tokens := Tokenize(req.Lyrics)
	if len(tokens) == 0 {
		tokens, out.Degraded = a.writeLyrics(ctx, req, gctx.Structure)
		source = SourceLLM
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if len(tokens) == 0 {
		tokens = Placeholder(int(req.TotalBeats() / noteBeats))
		source = SourcePlaceholder
	}

	// one token per beat, dropping what does not fit the song
	if maxTokens := int(req.TotalBeats() / noteBeats); len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	out.Track = models.Track{
		Name:    "Vocals",
		Program: models.ProgramVocals,
		Channel: models.ChannelVocals,
	}
	tonic := key.ScalePitch(0, 4)
	for i, tok := range tokens {
		start := float64(i) * noteBeats
		energy := 0
		if sec, ok := models.SectionAt(gctx.Structure, start); ok {
			energy = sec.Energy
		}
		out.Track.Notes = append(out.Track.Notes, models.NoteEvent{
			Pitch:         key.Snap(tonic + i%contour),
			StartBeats:    start,
			DurationBeats: noteLength,
			Velocity:      arranger.EnergyVelocity(baseVelocity, energy),
			Channel:       models.ChannelVocals,
		})
		out.Lyrics = append(out.Lyrics, models.LyricToken{Text: tok, NoteIndex: i})
	}

	log.Printf("🎙️ Vocals: %d tokens from %s", len(out.Lyrics), source)
	return out, nil
}

func (a *Agent) writeLyrics(ctx context.Context, req models.MusicalRequest, sections []models.CompositionSection) ([]string, error) {
	if !a.client.CanGenerate() {
		return nil, nil
	}

	var resp lyricsResponse
	err := a.client.Complete(ctx, "lyrics",
		a.prompts.Loader().GetLyricistPrompt(),
		a.prompts.BuildLyricsPrompt(req, sections),
		llm.GetLyricsSchema(),
		&resp,
	)
	if err != nil {
		log.Printf("⚠️ Lyrics generation failed, using placeholder syllables: %v", err)
		return nil, fmt.Errorf("lyrics unavailable: %w", err)
	}

	var sb strings.Builder
	for _, s := range resp.Sections {
		for _, line := range s.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return Tokenize(sb.String()), nil
}

// Tokenize splits lyrics into sung words. Section markers like [Chorus] are
// dropped along with surrounding punctuation.
func Tokenize(lyrics string) []string {
	text := sectionMarker.ReplaceAllString(lyrics, " ")
	var tokens []string
	for _, word := range strings.Fields(text) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// Placeholder returns n syllables cycling through a fixed set.
func Placeholder(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = placeholders[i%len(placeholders)]
	}
	return out
}
