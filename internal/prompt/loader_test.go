package prompt

import (
	"strings"
	"testing"
)

func TestNewPromptLoader(t *testing.T) {
	loader := NewPromptLoader()
	if loader == nil {
		t.Fatal("NewPromptLoader() returned nil")
	}
}

func TestAllLoadersReturnNonEmptyContent(t *testing.T) {
	loader := NewPromptLoader()

	tests := []struct {
		name     string
		fn       func() string
		contains string
	}{
		{"RequestParserPrompt", loader.GetRequestParserPrompt, "tempo"},
		{"ArtistProfilePrompt", loader.GetArtistProfilePrompt, "style_summary"},
		{"DrummerPrompt", loader.GetDrummerPrompt, "pattern(drum=kick"},
		{"LyricistPrompt", loader.GetLyricistPrompt, "section"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := tt.fn()
			if len(content) < 10 {
				t.Errorf("%s returned suspiciously short content: %d characters", tt.name, len(content))
			}
			if !strings.Contains(content, tt.contains) {
				t.Errorf("%s does not contain %q", tt.name, tt.contains)
			}
			if strings.HasPrefix(content, "\n") || strings.HasSuffix(content, "\n") {
				t.Errorf("%s is not trimmed", tt.name)
			}
		})
	}
}
