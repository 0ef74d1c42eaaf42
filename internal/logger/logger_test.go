package logger

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)
	fn()
	return buf.String()
}

func TestFormatFields(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   string
	}{
		{name: "empty", fields: nil, want: ""},
		{name: "sorted keys", fields: Fields{"state": "ParseInput", "run_id": "r1"}, want: "{run_id=r1, state=ParseInput}"},
		{name: "numbers", fields: Fields{"n": 3, "ms": int64(12), "score": 0.5}, want: "{ms=12, n=3, score=0.50}"},
		{name: "other types", fields: Fields{"ok": true}, want: "{ok=true}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFields(tt.fields))
		})
	}
}

func TestLogStage(t *testing.T) {
	out := captureLog(t, func() {
		LogStage(context.Background(), "run-1", "GenerateChords", 15*time.Millisecond, nil)
	})
	assert.Contains(t, out, "[INFO] Pipeline stage completed")
	assert.Contains(t, out, "state=GenerateChords")

	out = captureLog(t, func() {
		LogStage(context.Background(), "run-1", "Export", time.Millisecond, errors.New("disk full"))
	})
	assert.Contains(t, out, "[ERROR] Pipeline stage failed: disk full")
}

func TestLogRetrieval(t *testing.T) {
	out := captureLog(t, func() {
		LogRetrieval("run-2", 3, true, map[string]int{"segment": 1})
	})
	assert.Contains(t, out, "[WARN] Pattern retrieval fell back")
	assert.Contains(t, out, "count_segment=1")
	assert.Contains(t, out, "tier=3")
}

// eventTransport keeps the events Sentry would have sent.
type eventTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *eventTransport) Configure(sentry.ClientOptions)        {}
func (t *eventTransport) Flush(time.Duration) bool              { return true }
func (t *eventTransport) FlushWithContext(context.Context) bool { return true }
func (t *eventTransport) Close()                                {}
func (t *eventTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func TestLogAPIRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	transport := &eventTransport{}
	require.NoError(t, sentry.Init(sentry.ClientOptions{Dsn: "https://key@sentry.example.com/1", Transport: transport}))
	defer sentry.CurrentHub().BindClient(nil)

	tests := []struct {
		name   string
		status int
		want   string
		events int
	}{
		{"ok", http.StatusOK, "[INFO] API request completed", 0},
		{"client error", http.StatusNotFound, "[WARN] API request rejected", 0},
		{"server error", http.StatusBadGateway, "[ERROR] API request failed: status 502", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport.events = nil
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/compose", nil)
			c.Set("request_id", "req-9")

			out := captureLog(t, func() {
				LogAPIRequest(c, 12*time.Millisecond, tt.status, nil)
			})
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "request_id=req-9")
			assert.Contains(t, out, "path=/api/v1/compose")

			require.Len(t, transport.events, tt.events)
			for _, ev := range transport.events {
				require.NotEmpty(t, ev.Exception)
				assert.Equal(t, "status 502", ev.Exception[0].Value)
			}
		})
	}
}
