package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryMetrics records pipeline and API timings as Sentry spans. Spans are
// dropped by the SDK when Sentry was never initialised.
type SentryMetrics struct{}

func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{}
}

// RecordAPIRequest records one HTTP request.
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	span := startSpan(ctx, "api.request", endpoint, duration)
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", strconv.Itoa(statusCode))
	span.Status = statusFor(statusCode < http.StatusBadRequest)
}

// RecordStageDuration records one pipeline state as a child span.
func (m *SentryMetrics) RecordStageDuration(ctx context.Context, state string, duration time.Duration, success bool) {
	span := startSpan(ctx, "pipeline.stage", state, duration)
	defer span.Finish()

	span.SetTag("state", state)
	span.Status = statusFor(success)
}

// RecordRetrieval tags the current transaction with the tier retrieval reached.
func (m *SentryMetrics) RecordRetrieval(ctx context.Context, tier int, isFallback bool) {
	tx := sentry.TransactionFromContext(ctx)
	if tx == nil {
		return
	}
	tx.SetTag("retrieval.tier", strconv.Itoa(tier))
	tx.SetTag("retrieval.is_fallback", strconv.FormatBool(isFallback))
}

// RecordTokenUsage records token usage of one LLM call.
func (m *SentryMetrics) RecordTokenUsage(ctx context.Context, model string, totalTokens, inputTokens, outputTokens int) {
	span := startSpan(ctx, "llm.token_usage", model, 0)
	defer span.Finish()

	span.SetTag("model", model)
	span.SetData("total_tokens", totalTokens)
	span.SetData("input_tokens", inputTokens)
	span.SetData("output_tokens", outputTokens)
	span.Status = sentry.SpanStatusOK
}

func startSpan(ctx context.Context, op, description string, duration time.Duration) *sentry.Span {
	span := sentry.StartSpan(ctx, op)
	span.Description = description
	if duration > 0 {
		span.SetData("duration_ms", duration.Milliseconds())
	}
	return span
}

func statusFor(success bool) sentry.SpanStatus {
	if success {
		return sentry.SpanStatusOK
	}
	return sentry.SpanStatusInternalError
}
