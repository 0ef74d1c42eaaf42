package metrics

import (
	"context"
	"time"
)

// Recorder fans pipeline and API metrics out to Sentry and CloudWatch.
// A nil *Recorder discards everything.
type Recorder struct {
	sentry     *SentryMetrics
	cloudwatch *Client
}

// NewRecorder combines the two sinks; either may be nil.
func NewRecorder(s *SentryMetrics, cw *Client) *Recorder {
	return &Recorder{sentry: s, cloudwatch: cw}
}

// RecordAPIRequest records one HTTP request
func (r *Recorder) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	if r.sentry != nil {
		r.sentry.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	}
	if r.cloudwatch != nil {
		r.cloudwatch.RecordAPIRequest(endpoint, statusCode, duration)
	}
}

// RecordStage records one pipeline state
func (r *Recorder) RecordStage(ctx context.Context, state string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	if r.sentry != nil {
		r.sentry.RecordStageDuration(ctx, state, duration, err == nil)
	}
	if err != nil && r.cloudwatch != nil {
		r.cloudwatch.RecordStageFailure(state)
	}
}

// RecordRetrieval records the tier that served pattern retrieval
func (r *Recorder) RecordRetrieval(ctx context.Context, tier int, isFallback bool) {
	if r == nil {
		return
	}
	if r.sentry != nil {
		r.sentry.RecordRetrieval(ctx, tier, isFallback)
	}
	if r.cloudwatch != nil {
		r.cloudwatch.RecordRetrievalTier(tier)
	}
}

// RecordComposition records a finished run
func (r *Recorder) RecordComposition(_ context.Context, duration time.Duration, success, vocals bool) {
	if r == nil || r.cloudwatch == nil {
		return
	}
	r.cloudwatch.RecordComposition(duration, success, vocals)
}

// RecordTokenUsage records token usage of one LLM call
func (r *Recorder) RecordTokenUsage(ctx context.Context, model string, total, input, output int) {
	if r == nil || r.sentry == nil {
		return
	}
	r.sentry.RecordTokenUsage(ctx, model, total, input, output)
}
