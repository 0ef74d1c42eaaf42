package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/export"
	apimiddleware "github.com/Conceptual-Machines/magda-composer/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/gin-gonic/gin"
)

const defaultComposeTimeout = 5 * time.Minute

// Composer runs one composition. *pipeline.Controller satisfies it.
type Composer interface {
	Run(ctx context.Context, input models.RequestInput) (*pipeline.RunResult, error)
}

type ComposeHandler struct {
	composer Composer
	runs     export.RunStore
	timeout  time.Duration
}

// NewComposeHandler creates the compose handler. runs may be nil; when set,
// failed runs are recorded there (successful ones are recorded on export).
func NewComposeHandler(composer Composer, runs export.RunStore, timeout time.Duration) *ComposeHandler {
	if timeout <= 0 {
		timeout = defaultComposeTimeout
	}
	return &ComposeHandler{composer: composer, runs: runs, timeout: timeout}
}

type ComposeRequest struct {
	Description string                `json:"description"`
	Params      *models.RequestParams `json:"params"`
}

type TrackSummary struct {
	Name    string `json:"name"`
	Channel int    `json:"channel"`
	Program int    `json:"program"`
	IsDrum  bool   `json:"is_drum"`
	Notes   int    `json:"notes"`
}

type ComposeResponse struct {
	RunID      string                 `json:"run_id"`
	State      pipeline.State         `json:"state"`
	Tier       int                    `json:"tier"`
	IsFallback bool                   `json:"is_fallback"`
	Request    *models.MusicalRequest `json:"request"`
	Tracks     []TrackSummary         `json:"tracks"`
	TotalBeats float64                `json:"total_beats"`
	Coverage   *models.CoverageReport `json:"coverage,omitempty"`
	MIDIPath   string                 `json:"midi_path,omitempty"`
	Artifacts  []models.Artifact      `json:"artifacts"`
	Warnings   []string               `json:"warnings"`
	DurationMS int64                  `json:"duration_ms"`
}

type ComposeFailure struct {
	RunID       string         `json:"run_id"`
	FailedState pipeline.State `json:"failed_state"`
	Cause       string         `json:"cause"`
	Kind        string         `json:"kind"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Compose runs the pipeline: 200 with a run summary, 422 when a state failed.
func (h *ComposeHandler) Compose(c *gin.Context) {
	var req ComposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := logger.WithContext(c)
	userID := apimiddleware.UserID(c)
	log.Printf("🎼 Compose request from user %s", userID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.composer.Run(ctx, models.RequestInput{Description: req.Description, Params: req.Params})
	if err != nil {
		var stageErr *pipeline.StageError
		if result == nil || !errors.As(err, &stageErr) {
			logger.Error("Composition crashed", err, fields)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		fields["run_id"] = result.RunID
		fields["state"] = string(result.FailedState)
		logger.Warn("Composition failed", fields)
		h.recordFailure(ctx, result, userID)

		c.JSON(http.StatusUnprocessableEntity, ComposeFailure{
			RunID:       result.RunID,
			FailedState: result.FailedState,
			Cause:       result.Cause,
			Kind:        stageErr.Kind.Error(),
			Warnings:    result.Warnings,
		})
		return
	}

	c.JSON(http.StatusOK, Summarize(result))
}

// Summarize turns a finished run into the API response.
func Summarize(result *pipeline.RunResult) ComposeResponse {
	resp := ComposeResponse{
		RunID:      result.RunID,
		State:      result.State,
		Request:    result.Request,
		Coverage:   result.Coverage,
		MIDIPath:   result.MIDIPath(),
		Tracks:     []TrackSummary{},
		Artifacts:  []models.Artifact{},
		Warnings:   []string{},
		DurationMS: result.Duration.Milliseconds(),
	}
	if result.Patterns != nil {
		resp.Tier = result.Patterns.Tier
		resp.IsFallback = result.Patterns.IsFallback
	}
	if tl := result.Timeline; tl != nil {
		resp.TotalBeats = tl.TotalBeats
		for _, t := range tl.Tracks {
			resp.Tracks = append(resp.Tracks, TrackSummary{
				Name:    t.Name,
				Channel: t.Channel,
				Program: t.Program,
				IsDrum:  t.IsDrum,
				Notes:   len(t.Notes),
			})
		}
	}
	if result.Export != nil {
		resp.Artifacts = append(resp.Artifacts, result.Export.Artifacts...)
	}
	resp.Warnings = append(resp.Warnings, result.Warnings...)
	return resp
}

func (h *ComposeHandler) recordFailure(ctx context.Context, result *pipeline.RunResult, userID string) {
	if h.runs == nil {
		return
	}
	run := &models.CompositionRun{
		RunID:        result.RunID,
		UserID:       userID,
		Status:       "failed",
		FailedState:  string(result.FailedState),
		FailureCause: result.Cause,
	}
	if req := result.Request; req != nil {
		run.Genre = req.Genre
		run.Tempo = req.Tempo
		run.Duration = req.Duration
		run.Vocals = req.Vocals
	}
	// the request context may already be done; the record should still land
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.runs.SaveRun(saveCtx, run); err != nil {
		logger.Error("Failed to record failed run", err, logger.Fields{"run_id": result.RunID})
	}
}
