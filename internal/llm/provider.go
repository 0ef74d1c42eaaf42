package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no provider or embedder is available.
var ErrNotConfigured = errors.New("llm provider not configured")

// Provider defines the interface for LLM providers
type Provider interface {
	// Generate runs one completion. When OutputSchema is set the provider must
	// return JSON conforming to it; when CFGGrammar is set it must return DSL.
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// Embedder turns text into a vector for pattern retrieval.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, Usage, error)
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model         string
	InputArray    []map[string]any
	ReasoningMode string
	SystemPrompt  string
	// Structured output schema
	OutputSchema *OutputSchema
	// CFG Grammar for DSL output (alternative to JSON Schema)
	CFGGrammar *CFGConfig
}

// CFGConfig contains context-free grammar configuration
type CFGConfig struct {
	ToolName    string // Name of the tool that will receive the DSL output
	Description string // Description of what the tool does
	Grammar     string // Lark grammar definition
	Syntax      string // "lark" or "regex" (default: "lark")
}

// OutputSchema defines the expected JSON output structure
type OutputSchema struct {
	Name        string
	Description string
	Schema      map[string]any // JSON Schema object
}

// Usage is the token accounting of one call.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	RawOutput string `json:"-"` // JSON text, DSL, or plain text depending on the request
	Usage     Usage  `json:"usage"`
}

// UserMessage builds a single-message input array.
func UserMessage(content string) []map[string]any {
	return []map[string]any{{"role": userRole, "content": content}}
}
