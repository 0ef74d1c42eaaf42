package prompt

import (
	"strings"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
)

func testRequest(t *testing.T) models.MusicalRequest {
	t.Helper()
	req, err := models.NewMusicalRequest(models.RequestParams{
		Genre:       "rock",
		Tempo:       140,
		Instruments: []string{"guitar", "bass"},
		Artist:      "Foo Fighters",
		VocalStyle:  "gritty",
	})
	if err != nil {
		t.Fatalf("NewMusicalRequest: %v", err)
	}
	return req
}

func TestBuildDrummerPrompt(t *testing.T) {
	b := NewPromptBuilder()
	sections := []models.CompositionSection{{Name: "intro"}, {Name: "verse"}, {Name: "chorus"}}

	got := b.BuildDrummerPrompt(testRequest(t), sections)
	for _, want := range []string{"GENRE: rock", "TEMPO: 140 BPM", "ARTIST STYLE: Foo Fighters", "SECTIONS: intro, verse, chorus"} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildDrummerPrompt() missing %q in:\n%s", want, got)
		}
	}
}

func TestBuildLyricsPrompt(t *testing.T) {
	b := NewPromptBuilder()
	got := b.BuildLyricsPrompt(testRequest(t), []models.CompositionSection{{Name: "verse"}})
	if !strings.Contains(got, "VOCAL STYLE: gritty") {
		t.Errorf("BuildLyricsPrompt() missing vocal style:\n%s", got)
	}
	if !strings.Contains(got, "INSTRUMENTS: guitar, bass") {
		t.Errorf("BuildLyricsPrompt() missing instruments:\n%s", got)
	}
}

func TestBuildRequestPrompt(t *testing.T) {
	b := NewPromptBuilder()
	got := b.BuildRequestPrompt("  a slow blues tune \n")
	if got != "COMPOSITION REQUEST:\na slow blues tune" {
		t.Errorf("BuildRequestPrompt() = %q", got)
	}
	if b.Loader() == nil {
		t.Error("Loader() returned nil")
	}
}
