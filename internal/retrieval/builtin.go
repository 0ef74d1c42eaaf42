package retrieval

import (
	"encoding/json"
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/pkg/embedded"
)

const builtinSource = "builtin"

// Builtin returns the built-in patterns for kind with the sentinel score.
// The set is never empty for a valid kind.
func Builtin(kind models.PatternKind) []models.Pattern {
	var out []models.Pattern
	for _, p := range builtinPatterns {
		if p.Kind == kind {
			p.Score = models.BuiltinScore
			p.Source = builtinSource
			out = append(out, p)
		}
	}
	return out
}

var builtinPatterns = mustLoadBuiltin(embedded.BuiltinPatternsJSON)

func mustLoadBuiltin(raw []byte) []models.Pattern {
	patterns, err := loadBuiltin(raw)
	if err != nil {
		panic(err)
	}
	return patterns
}

func loadBuiltin(raw []byte) ([]models.Pattern, error) {
	var patterns []models.Pattern
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("parse built-in patterns: %w", err)
	}

	perKind := make(map[models.PatternKind]int)
	for _, p := range patterns {
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("built-in pattern %s has invalid kind %q", p.ID, p.Kind)
		}
		perKind[p.Kind]++
	}
	for _, kind := range models.AllPatternKinds() {
		if perKind[kind] == 0 {
			return nil, fmt.Errorf("no built-in patterns for kind %s", kind)
		}
	}
	return patterns, nil
}
