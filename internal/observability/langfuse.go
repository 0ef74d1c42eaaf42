package observability

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"
)

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
}

// InitializeLangfuse creates the Langfuse client; it is disabled unless configured.
func InitializeLangfuse(ctx context.Context, cfg *config.Config) *LangfuseClient {
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or LANGFUSE_SECRET_KEY not set)")
		return &LangfuseClient{enabled: false}
	}

	// The SDK reads its credentials from the environment
	setEnvDefault("LANGFUSE_HOST", cfg.LangfuseHost)
	setEnvDefault("LANGFUSE_PUBLIC_KEY", cfg.LangfusePublicKey)
	setEnvDefault("LANGFUSE_SECRET_KEY", cfg.LangfuseSecretKey)

	client := &LangfuseClient{
		client:  langfuse.New(ctx),
		enabled: true,
	}
	log.Printf("✅ Langfuse initialized (host: %s)", cfg.LangfuseHost)
	return client
}

func setEnvDefault(key, value string) {
	if os.Getenv(key) == "" && value != "" {
		_ = os.Setenv(key, value)
	}
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// StartTrace starts a new trace in Langfuse. The returned trace is always
// usable; it is a no-op when Langfuse is disabled.
func (c *LangfuseClient) StartTrace(ctx context.Context, name string, metadata map[string]interface{}) *Trace {
	if !c.IsEnabled() {
		return &Trace{ctx: ctx}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:     name,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{ctx: ctx}
	}

	return &Trace{
		trace:   trace,
		enabled: true,
		ctx:     ctx,
		client:  c.client,
	}
}

// Trace represents a Langfuse trace, one per composition run
type Trace struct {
	trace   *model.Trace
	enabled bool
	ctx     context.Context
	client  *langfuse.Langfuse
}

// ID returns the Langfuse trace id, or "" when disabled.
func (t *Trace) ID() string {
	if t == nil || !t.enabled || t.trace == nil || t.trace.ID == nil {
		return ""
	}
	return *t.trace.ID
}

// Span opens a span for one pipeline state.
func (t *Trace) Span(name string, input interface{}) *Span {
	if t == nil || !t.enabled {
		return &Span{}
	}

	now := time.Now()
	span, err := t.client.Span(&model.Span{
		TraceID:   t.trace.ID,
		Name:      name,
		StartTime: &now,
		Input:     input,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse span: %v", err)
		return &Span{}
	}
	return &Span{span: span, enabled: true, client: t.client}
}

// Generation creates a new generation within the trace
func (t *Trace) Generation(name string, metadata map[string]interface{}) *Generation {
	if t == nil || !t.enabled {
		return &Generation{}
	}

	now := time.Now()
	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      name,
		StartTime: &now,
		Metadata:  metadata,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Generation{}
	}

	return &Generation{
		generation: gen,
		enabled:    true,
		client:     t.client,
	}
}

// Finish flushes queued events to Langfuse
func (t *Trace) Finish() {
	if t != nil && t.enabled && t.client != nil {
		t.client.Flush(t.ctx)
	}
}

// Span represents a Langfuse span around one pipeline state
type Span struct {
	span    *model.Span
	enabled bool
	client  *langfuse.Langfuse
}

// End closes the span; a non-nil err marks it as ERROR.
func (s *Span) End(output interface{}, err error) {
	if s == nil || !s.enabled || s.span == nil {
		return
	}

	now := time.Now()
	s.span.EndTime = &now
	s.span.Output = output
	if err != nil {
		s.span.Level = model.ObservationLevelError
		s.span.StatusMessage = err.Error()
	}
	if _, endErr := s.client.SpanEnd(s.span); endErr != nil {
		log.Printf("⚠️  Failed to end Langfuse span: %v", endErr)
	}
}

// Generation represents a Langfuse generation
type Generation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// Input sets the input for the generation
func (g *Generation) Input(input interface{}) {
	if g.enabled && g.generation != nil {
		g.generation.Input = input
	}
}

// Output sets the output for the generation
func (g *Generation) Output(output interface{}) {
	if g.enabled && g.generation != nil {
		g.generation.Output = output
	}
}

// Usage sets the token usage for the generation
func (g *Generation) Usage(usage map[string]interface{}) {
	if g.enabled && g.generation != nil {
		g.generation.Usage = convertUsageMap(usage)
	}
}

// Model sets the model name
func (g *Generation) Model(name string) {
	if g.enabled && g.generation != nil {
		g.generation.Model = name
	}
}

// SetLevel sets the level of the generation
func (g *Generation) SetLevel(level string) {
	if g.enabled && g.generation != nil {
		g.generation.Level = model.ObservationLevel(level)
	}
}

// Finish completes the generation and sends it to Langfuse
func (g *Generation) Finish() {
	if g.enabled && g.generation != nil && g.client != nil {
		now := time.Now()
		g.generation.EndTime = &now
		if _, err := g.client.GenerationEnd(g.generation); err != nil {
			log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
		}
	}
}

// convertUsageMap converts a usage map to model.Usage
func convertUsageMap(usage map[string]interface{}) model.Usage {
	result := model.Usage{
		Unit:   model.ModelUsageUnitTokens,
		Input:  intValue(usage["input_tokens"]),
		Output: intValue(usage["output_tokens"]),
		Total:  intValue(usage["total_tokens"]),
	}
	if cost, ok := usage["cost_usd"].(float64); ok {
		result.TotalCost = cost
	}
	return result
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
