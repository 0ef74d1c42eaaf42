package llm

const (
	// Tempo constraints
	tempoMin = 20
	tempoMax = 300

	// Duration limit, in minutes
	durationMax = 20

	// Artist profile energy scale
	energyMin = 1
	energyMax = 10
)

// GetRequestParseSchema returns the JSON schema used to turn a free-text
// composition request into structured parameters.
// Empty strings and zero numbers mean "not mentioned".
func GetRequestParseSchema() *OutputSchema {
	return &OutputSchema{
		Name:        "MusicalRequest",
		Description: "Structured parameters extracted from a composition request",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"genre":          map[string]any{"type": "string"},
				"subgenre":       map[string]any{"type": "string"},
				"mood":           map[string]any{"type": "string"},
				"tempo":          map[string]any{"type": "integer", "minimum": 0, "maximum": tempoMax},
				"duration":       map[string]any{"type": "number", "minimum": 0, "maximum": durationMax},
				"instruments":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"artist":         map[string]any{"type": "string"},
				"vocals":         map[string]any{"type": "boolean"},
				"vocal_style":    map[string]any{"type": "string"},
				"lyrics":         map[string]any{"type": "string"},
				"key":            map[string]any{"type": "string"},
				"time_signature": map[string]any{"type": "string"},
			},
			"required": []string{
				"genre", "subgenre", "mood", "tempo", "duration", "instruments",
				"artist", "vocals", "vocal_style", "lyrics", "key", "time_signature",
			},
			"additionalProperties": false,
		},
	}
}

// GetArtistProfileSchema returns the JSON schema for an artist style profile.
func GetArtistProfileSchema() *OutputSchema {
	return &OutputSchema{
		Name:        "ArtistProfile",
		Description: "Musical style characteristics of an artist",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"style_summary":        map[string]any{"type": "string"},
				"signature_techniques": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"harmonic_tendencies":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"tempo_min":            map[string]any{"type": "integer", "minimum": tempoMin, "maximum": tempoMax},
				"tempo_max":            map[string]any{"type": "integer", "minimum": tempoMin, "maximum": tempoMax},
				"instrumentation":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"energy":               map[string]any{"type": "integer", "minimum": energyMin, "maximum": energyMax},
			},
			"required": []string{
				"style_summary", "signature_techniques", "harmonic_tendencies",
				"tempo_min", "tempo_max", "instrumentation", "energy",
			},
			"additionalProperties": false,
		},
	}
}

// GetLyricsSchema returns the JSON schema for generated lyrics, one entry per section.
func GetLyricsSchema() *OutputSchema {
	return &OutputSchema{
		Name:        "Lyrics",
		Description: "Song lyrics split into sections",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sections": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":  map[string]any{"type": "string"},
							"lines": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
						"required":             []string{"name", "lines"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"sections"},
			"additionalProperties": false,
		},
	}
}
