package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
)

const maxListed = 20

// SearchPatternsTool handles the search_patterns MCP tool.
type SearchPatternsTool struct {
	retriever pipeline.PatternRetriever
}

func NewSearchPatternsTool(retriever pipeline.PatternRetriever) *SearchPatternsTool {
	return &SearchPatternsTool{retriever: retriever}
}

// Definition returns the MCP tool definition for search_patterns.
func (t *SearchPatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("search_patterns",
		mcp.WithDescription(
			"Search the reference pattern index the composer draws from. "+
				"Reports the fallback tier that produced the results.",
		),
		mcp.WithString("genre", mcp.Description("Genre to match, e.g. jazz")),
		mcp.WithString("mood", mcp.Description("Mood to match")),
		mcp.WithArray("instruments",
			mcp.Description("Instruments to match"),
			mcp.WithStringItems(),
		),
		mcp.WithString("kind",
			mcp.Description("Restrict to one kind: segment, chord_progression, melodic_phrase"),
		),
	)
}

// Handle processes the search_patterns tool call.
func (t *SearchPatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var kinds []models.PatternKind
	if raw := strings.ToLower(strings.TrimSpace(req.GetString("kind", ""))); raw != "" {
		kind := models.PatternKind(raw)
		if !kind.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", raw)), nil
		}
		kinds = append(kinds, kind)
	}

	musical, err := models.NewMusicalRequest(models.RequestParams{
		Genre:       req.GetString("genre", ""),
		Mood:        req.GetString("mood", ""),
		Instruments: stringsArg(req, "instruments"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	set, err := t.retriever.Retrieve(ctx, musical, kinds)

	var b strings.Builder
	fmt.Fprintf(&b, "Tier %d (%s), %d patterns, fallback=%t\n", set.Tier, tierName(set.Tier), len(set.Patterns), set.IsFallback)
	if err != nil {
		fmt.Fprintf(&b, "Warning: %v\n", err)
	}
	b.WriteString("\n")
	for i, p := range set.Patterns {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(set.Patterns)-maxListed)
			break
		}
		fmt.Fprintf(&b, "[%d] %s (%s, %s) score=%.3f\n", i+1, p.ID, p.Kind, valueOr(p.Genre, "any genre"), p.Score)
		if p.Description != "" {
			fmt.Fprintf(&b, "    %s\n", p.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func tierName(tier int) string {
	switch tier {
	case models.TierExact:
		return "genre and instruments"
	case models.TierGenre:
		return "genre only"
	case models.TierGeneric:
		return "unfiltered"
	default:
		return "built-in"
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
