package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubComposer struct{}

func (stubComposer) Run(_ context.Context, _ models.RequestInput) (*pipeline.RunResult, error) {
	return &pipeline.RunResult{RunID: "stub", State: pipeline.StateDone}, nil
}

func newTestRouter(authMode string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(Dependencies{
		Config:    &config.Config{AuthMode: authMode, PatternStore: "memory"},
		Version:   "test",
		Composer:  stubComposer{},
		Retriever: retrieval.New(nil, nil, retrieval.Options{}),
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter(config.AuthModeGateway)

	for _, path := range []string{"/health", "/api/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestRouter_ComposeRequiresGatewayUser(t *testing.T) {
	router := newTestRouter(config.AuthModeGateway)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compose", bytes.NewBufferString(`{"description":"pop"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/compose", bytes.NewBufferString(`{"description":"pop"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"stub"`)
}

func TestRouter_IndexWithoutIndexer(t *testing.T) {
	router := newTestRouter(config.AuthModeNone)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patterns", bytes.NewBufferString(`{"patterns":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_ReusesRequestID(t *testing.T) {
	router := newTestRouter(config.AuthModeNone)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
