package prompt

import (
	"strings"

	"github.com/Conceptual-Machines/magda-composer/pkg/embedded"
)

type Loader struct{}

func NewPromptLoader() *Loader {
	return &Loader{}
}

// GetRequestParserPrompt loads the system prompt for description parsing
func (l *Loader) GetRequestParserPrompt() string {
	return strings.TrimSpace(string(embedded.RequestParserPromptTxt))
}

// GetArtistProfilePrompt loads the system prompt for artist profiles
func (l *Loader) GetArtistProfilePrompt() string {
	return strings.TrimSpace(string(embedded.ArtistProfilePromptTxt))
}

// GetDrummerPrompt loads the system prompt for drum grooves
func (l *Loader) GetDrummerPrompt() string {
	return strings.TrimSpace(string(embedded.DrummerPromptTxt))
}

// GetLyricistPrompt loads the system prompt for lyrics
func (l *Loader) GetLyricistPrompt() string {
	return strings.TrimSpace(string(embedded.LyricistPromptTxt))
}
