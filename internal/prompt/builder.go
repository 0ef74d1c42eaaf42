package prompt

import (
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

// Builder renders the user messages sent alongside the embedded system prompts
type Builder struct {
	loader *Loader
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *Builder {
	return &Builder{loader: NewPromptLoader()}
}

// Loader returns the loader used for system prompts
func (b *Builder) Loader() *Loader {
	return b.loader
}

// BuildRequestPrompt wraps a free-text description
func (b *Builder) BuildRequestPrompt(description string) string {
	return "COMPOSITION REQUEST:\n" + strings.TrimSpace(description)
}

// BuildArtistPrompt asks for the style of artist, with genre as a hint
func (b *Builder) BuildArtistPrompt(artist, genre string) string {
	return fmt.Sprintf("ARTIST: %s\nGENRE HINT: %s", artist, genre)
}

// BuildDrummerPrompt describes the song a groove is needed for
func (b *Builder) BuildDrummerPrompt(req models.MusicalRequest, sections []models.CompositionSection) string {
	var sb strings.Builder
	writeSongHeader(&sb, req)
	sb.WriteString("SECTIONS: ")
	sb.WriteString(sectionNames(sections))
	sb.WriteString("\n")
	return sb.String()
}

// BuildLyricsPrompt describes the song lyrics are needed for
func (b *Builder) BuildLyricsPrompt(req models.MusicalRequest, sections []models.CompositionSection) string {
	var sb strings.Builder
	writeSongHeader(&sb, req)
	if req.VocalStyle != "" {
		fmt.Fprintf(&sb, "VOCAL STYLE: %s\n", req.VocalStyle)
	}
	sb.WriteString("SECTIONS (in order): ")
	sb.WriteString(sectionNames(sections))
	sb.WriteString("\n")
	return sb.String()
}

func writeSongHeader(sb *strings.Builder, req models.MusicalRequest) {
	fmt.Fprintf(sb, "GENRE: %s\n", req.FullGenre())
	fmt.Fprintf(sb, "MOOD: %s\n", req.Mood)
	fmt.Fprintf(sb, "TEMPO: %d BPM\n", req.Tempo)
	fmt.Fprintf(sb, "TIME SIGNATURE: %s\n", req.TimeSignature)
	if req.Artist != "" {
		fmt.Fprintf(sb, "ARTIST STYLE: %s\n", req.Artist)
	}
	if len(req.Instruments) > 0 {
		fmt.Fprintf(sb, "INSTRUMENTS: %s\n", strings.Join(req.Instruments, ", "))
	}
}

func sectionNames(sections []models.CompositionSection) string {
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
