package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/gin-gonic/gin"
)

const maxIndexBatch = 500

// PatternIndexer writes patterns to the index. *retrieval.Indexer satisfies it.
type PatternIndexer interface {
	Index(ctx context.Context, patterns []models.Pattern) (int, error)
}

type PatternHandler struct {
	retriever pipeline.PatternRetriever
	indexer   PatternIndexer
}

func NewPatternHandler(retriever pipeline.PatternRetriever, indexer PatternIndexer) *PatternHandler {
	return &PatternHandler{retriever: retriever, indexer: indexer}
}

type SearchRequest struct {
	Params models.RequestParams `json:"params"`
	Kinds  []string             `json:"kinds"`
}

type SearchResponse struct {
	Tier       int              `json:"tier"`
	IsFallback bool             `json:"is_fallback"`
	Patterns   []models.Pattern `json:"patterns"`
	Warning    string           `json:"warning,omitempty"`
}

type IndexRequest struct {
	Patterns []models.Pattern `json:"patterns" binding:"required"`
}

// Search runs tiered retrieval for the given request parameters.
func (h *PatternHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kinds, err := parseKinds(req.Kinds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	musical, err := models.NewMusicalRequest(req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	set, err := h.retriever.Retrieve(c.Request.Context(), musical, kinds)
	resp := SearchResponse{Tier: set.Tier, IsFallback: set.IsFallback, Patterns: set.Patterns}
	if err != nil {
		logger.Warn("Pattern search degraded", logger.Fields{"request_id": c.GetString("request_id"), "error": err.Error()})
		resp.Warning = err.Error()
	}
	if resp.Patterns == nil {
		resp.Patterns = []models.Pattern{}
	}
	c.JSON(http.StatusOK, resp)
}

// Index embeds and stores patterns.
func (h *PatternHandler) Index(c *gin.Context) {
	if h.indexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pattern index not configured"})
		return
	}

	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Patterns) == 0 || len(req.Patterns) > maxIndexBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "patterns must hold between 1 and 500 entries"})
		return
	}
	for _, p := range req.Patterns {
		if !p.Kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown pattern kind: " + string(p.Kind)})
			return
		}
	}

	n, err := h.indexer.Index(c.Request.Context(), req.Patterns)
	if err != nil {
		logger.Error("Pattern indexing failed", err, logger.WithContext(c))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "indexed": n})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"indexed": n})
}

func parseKinds(raw []string) ([]models.PatternKind, error) {
	var kinds []models.PatternKind
	for _, r := range raw {
		k := models.PatternKind(strings.ToLower(strings.TrimSpace(r)))
		if !k.Valid() {
			return nil, fmt.Errorf("unknown pattern kind: %q", r)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
