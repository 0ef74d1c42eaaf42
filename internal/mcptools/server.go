package mcptools

import (
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/mark3labs/mcp-go/server"
)

const instructions = `magda-composer writes multi-track MIDI compositions.

Use search_patterns to see which reference material a request would draw on,
then compose to run the full pipeline. compose returns the path of the MIDI file.`

// NewServer registers every tool on a new MCP server.
func NewServer(version string, composer Composer, retriever pipeline.PatternRetriever) *server.MCPServer {
	s := server.NewMCPServer(
		"magda-composer",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	composeTool := NewComposeTool(composer)
	s.AddTool(composeTool.Definition(), composeTool.Handle)

	searchTool := NewSearchPatternsTool(retriever)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	return s
}
