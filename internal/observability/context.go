package observability

import (
	"context"
	"fmt"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
)

type traceKey struct{}

// WithTrace returns a context carrying the run's trace.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFromContext returns the run's trace, or a disabled trace.
func TraceFromContext(ctx context.Context) *Trace {
	if t, ok := ctx.Value(traceKey{}).(*Trace); ok && t != nil {
		return t
	}
	return &Trace{ctx: ctx}
}

// TokenMetrics receives token usage of every recorded call.
type TokenMetrics interface {
	RecordTokenUsage(ctx context.Context, model string, total, input, output int)
}

// CallRecorder implements llm.Recorder by writing each call as a Langfuse
// generation on the trace found in the call's context.
type CallRecorder struct {
	metrics TokenMetrics
}

// NewCallRecorder creates a recorder; metrics may be nil.
func NewCallRecorder(metrics TokenMetrics) *CallRecorder {
	return &CallRecorder{metrics: metrics}
}

// RecordCall implements llm.Recorder.
func (r *CallRecorder) RecordCall(ctx context.Context, call llm.Call) {
	cost := CalculateCost(call.Model, call.Usage)

	gen := TraceFromContext(ctx).Generation(call.Name, map[string]interface{}{
		"provider":    call.Provider,
		"duration_ms": call.Duration.Milliseconds(),
		"cost_usd":    FormatCost(cost),
	})
	gen.Model(call.Model)
	gen.Input(call.Input)
	if call.Err != nil {
		gen.SetLevel("ERROR")
		gen.Output(fmt.Sprintf("error: %v", call.Err))
	} else {
		gen.Output(call.Output)
	}
	gen.Usage(map[string]interface{}{
		"input_tokens":  call.Usage.InputTokens,
		"output_tokens": call.Usage.OutputTokens,
		"total_tokens":  call.Usage.TotalTokens,
		"cost_usd":      cost,
	})
	gen.Finish()

	if r.metrics != nil && call.Usage.TotalTokens > 0 {
		r.metrics.RecordTokenUsage(ctx, call.Model, call.Usage.TotalTokens, call.Usage.InputTokens, call.Usage.OutputTokens)
	}
}
