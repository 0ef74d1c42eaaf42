package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/retry"
)

// Call describes one finished LLM or embedding call.
type Call struct {
	Name     string
	Provider string
	Model    string
	Input    string
	Output   string
	Usage    Usage
	Duration time.Duration
	Err      error
}

// Recorder receives every call made through a Client.
type Recorder interface {
	RecordCall(ctx context.Context, call Call)
}

// Client binds a provider, an embedder and their models to a retry policy.
// A nil *Client behaves as an unconfigured client.
type Client struct {
	provider       Provider
	embedder       Embedder
	model          string
	embeddingModel string
	reasoningMode  string
	policy         retry.Policy
	recorder       Recorder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEmbedder sets the embedder and embedding model.
func WithEmbedder(e Embedder, model string) ClientOption {
	return func(c *Client) {
		c.embedder = e
		c.embeddingModel = model
	}
}

// WithPolicy sets the retry policy for every call.
func WithPolicy(p retry.Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithRecorder sets the call recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// WithReasoningMode sets the reasoning effort for reasoning models. An empty
// mode keeps the default.
func WithReasoningMode(mode string) ClientOption {
	return func(c *Client) {
		if mode != "" {
			c.reasoningMode = mode
		}
	}
}

// NewClient creates a client. provider may be nil when only embeddings are needed.
func NewClient(provider Provider, model string, opts ...ClientOption) *Client {
	c := &Client{
		provider:      provider,
		model:         model,
		reasoningMode: reasoningLow,
		policy:        retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanGenerate reports whether a provider is configured.
func (c *Client) CanGenerate() bool {
	return c != nil && c.provider != nil
}

// CanEmbed reports whether an embedder is configured.
func (c *Client) CanEmbed() bool {
	return c != nil && c.embedder != nil
}

// Complete runs a structured-output call and decodes the JSON result into out.
func (c *Client) Complete(ctx context.Context, name, systemPrompt, userPrompt string, schema *OutputSchema, out any) error {
	if !c.CanGenerate() {
		return ErrNotConfigured
	}
	resp, err := c.generate(ctx, name, &GenerationRequest{
		Model:         c.model,
		InputArray:    UserMessage(userPrompt),
		ReasoningMode: c.reasoningMode,
		SystemPrompt:  systemPrompt,
		OutputSchema:  schema,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.RawOutput), out); err != nil {
		return fmt.Errorf("%s: failed to parse model output: %w", name, err)
	}
	return nil
}

// CompleteDSL runs a grammar-constrained call and returns the DSL text.
func (c *Client) CompleteDSL(ctx context.Context, name, systemPrompt, userPrompt string, cfg *CFGConfig) (string, error) {
	if !c.CanGenerate() {
		return "", ErrNotConfigured
	}
	resp, err := c.generate(ctx, name, &GenerationRequest{
		Model:         c.model,
		InputArray:    UserMessage(userPrompt),
		ReasoningMode: c.reasoningMode,
		SystemPrompt:  systemPrompt,
		CFGGrammar:    cfg,
	})
	if err != nil {
		return "", err
	}
	return resp.RawOutput, nil
}

// Embed returns the embedding of text using the configured embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.CanEmbed() {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	var usage Usage
	vec, err := retry.Value(ctx, c.policy, "embed", func(ctx context.Context) ([]float32, error) {
		v, u, err := c.embedder.Embed(ctx, c.embeddingModel, text)
		usage = u
		return v, err
	})
	if err == nil && len(vec) == 0 {
		err = fmt.Errorf("embed: empty vector")
	}

	c.record(ctx, Call{
		Name:     "embed",
		Provider: "embedding",
		Model:    c.embeddingModel,
		Input:    text,
		Usage:    usage,
		Duration: time.Since(start),
		Err:      err,
	})
	return vec, err
}

func (c *Client) generate(ctx context.Context, name string, req *GenerationRequest) (*GenerationResponse, error) {
	start := time.Now()
	resp, err := retry.Value(ctx, c.policy, name, func(ctx context.Context) (*GenerationResponse, error) {
		return c.provider.Generate(ctx, req)
	})

	call := Call{
		Name:     name,
		Provider: c.provider.Name(),
		Model:    req.Model,
		Input:    req.SystemPrompt + "\n\n" + lastContent(req.InputArray),
		Duration: time.Since(start),
		Err:      err,
	}
	if resp != nil {
		call.Output = resp.RawOutput
		call.Usage = resp.Usage
	}
	c.record(ctx, call)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) record(ctx context.Context, call Call) {
	if c.recorder != nil {
		c.recorder.RecordCall(ctx, call)
	}
}

func lastContent(input []map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	s, _ := input[len(input)-1]["content"].(string)
	return s
}
