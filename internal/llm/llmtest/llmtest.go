// Package llmtest provides in-memory providers for tests of code that talks to models.
package llmtest

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/retry"
)

// Provider is a scripted llm.Provider. It records every request.
type Provider struct {
	GenerateFunc func(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResponse, error)

	mu       sync.Mutex
	requests []*llm.GenerationRequest
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "fake" }

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req *llm.GenerationRequest) (*llm.GenerationResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.GenerateFunc == nil {
		return &llm.GenerationResponse{RawOutput: "{}"}, nil
	}
	return p.GenerateFunc(ctx, req)
}

// Requests returns the requests seen so far.
func (p *Provider) Requests() []*llm.GenerationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.GenerationRequest(nil), p.requests...)
}

// Respond returns a provider that always answers with raw.
func Respond(raw string) *Provider {
	return &Provider{GenerateFunc: func(context.Context, *llm.GenerationRequest) (*llm.GenerationResponse, error) {
		return &llm.GenerationResponse{RawOutput: raw, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}, nil
	}}
}

// RespondJSON returns a provider that always answers with v encoded as JSON.
func RespondJSON(v any) *Provider {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Respond(string(raw))
}

// Fail returns a provider whose every call fails with err.
func Fail(err error) *Provider {
	return &Provider{GenerateFunc: func(context.Context, *llm.GenerationRequest) (*llm.GenerationResponse, error) {
		return nil, err
	}}
}

// Embedder returns deterministic vectors derived from the text.
type Embedder struct {
	Dim int
	Err error
}

// Embed implements llm.Embedder.
func (e *Embedder) Embed(ctx context.Context, model, text string) ([]float32, llm.Usage, error) {
	if e.Err != nil {
		return nil, llm.Usage{}, e.Err
	}
	return Vector(text, e.Dim), llm.Usage{InputTokens: len(text) / 4, TotalTokens: len(text) / 4}, nil
}

// Vector hashes text into a dim-sized vector (8 when dim <= 0).
func Vector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 8
	}
	vec := make([]float32, dim)
	for i := range vec {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		vec[i] = float32(h.Sum32()%1000)/1000 + 0.001
	}
	return vec
}

// Client wraps a provider and optional embedder in a single-attempt client.
func Client(p llm.Provider, e llm.Embedder) *llm.Client {
	opts := []llm.ClientOption{llm.WithPolicy(retry.Policy{Attempts: 1, Timeout: 5 * time.Second})}
	if e != nil {
		opts = append(opts, llm.WithEmbedder(e, "text-embedding-3-small"))
	}
	return llm.NewClient(p, "gpt-5-mini", opts...)
}
