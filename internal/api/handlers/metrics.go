package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/gin-gonic/gin"
)

const bytesToMB = 1024 * 1024

// MetricsHandler reports process, pipeline and pattern index state.
type MetricsHandler struct {
	started  time.Time
	version  string
	authMode string
	backend  string
	store    patternstore.Store
}

// NewMetricsHandler creates the handler; store may be nil.
func NewMetricsHandler(version, authMode, backend string, store patternstore.Store) *MetricsHandler {
	return &MetricsHandler{
		started:  time.Now(),
		version:  version,
		authMode: authMode,
		backend:  backend,
		store:    store,
	}
}

type MetricsResponse struct {
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	StartedAt time.Time        `json:"started_at"`
	AuthMode  string           `json:"auth_mode"`
	Runtime   RuntimeMetrics   `json:"runtime"`
	Pipeline  PipelineInfo     `json:"pipeline"`
	Patterns  PatternIndexInfo `json:"patterns"`
}

type RuntimeMetrics struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heap_mb"`
	NumGC      uint32 `json:"num_gc"`
}

type PipelineInfo struct {
	States      []pipeline.State `json:"states"`
	Conditional pipeline.State   `json:"conditional"`
}

type PatternIndexInfo struct {
	Backend string `json:"backend"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := MetricsResponse{
		Version:   h.version,
		Uptime:    formatUptime(time.Since(h.started)),
		StartedAt: h.started.UTC(),
		AuthMode:  h.authMode,
		Runtime: RuntimeMetrics{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     mem.HeapAlloc / bytesToMB,
			NumGC:      mem.NumGC,
		},
		Pipeline: PipelineInfo{
			States:      pipeline.StageStates(),
			Conditional: pipeline.StateGenerateVocals,
		},
		Patterns: PatternIndexInfo{Backend: h.backend},
	}

	if h.store != nil {
		n, err := h.store.Count(c.Request.Context())
		if err != nil {
			resp.Patterns.Error = err.Error()
		}
		resp.Patterns.Count = n
	}

	c.JSON(http.StatusOK, resp)
}

// formatUptime prints d as 1h2m3.45s, dropping leading zero units.
func formatUptime(d time.Duration) string {
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	seconds := (d % time.Minute).Seconds()

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm%.2fs", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%.2fs", minutes, seconds)
	default:
		return fmt.Sprintf("%.2fs", seconds)
	}
}
