package api

import (
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/export"
	"github.com/Conceptual-Machines/magda-composer/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magda-composer/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the services the router exposes. DB, Store, Indexer,
// Runs and Recorder may be nil.
type Dependencies struct {
	Config         *config.Config
	Version        string
	DB             *gorm.DB
	Composer       handlers.Composer
	Retriever      pipeline.PatternRetriever
	Indexer        handlers.PatternIndexer
	Store          patternstore.Store
	Runs           export.RunStore
	Recorder       *metrics.Recorder
	ComposeTimeout time.Duration
}

func SetupRouter(d Dependencies) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())
	router.Use(apimiddleware.SentryMiddleware())
	router.Use(apimiddleware.RequestTracking(d.Recorder))

	healthHandler := handlers.NewHealthHandler(d.DB, d.Store)
	router.GET("/health", healthHandler.HealthCheck)

	metricsHandler := handlers.NewMetricsHandler(d.Version, d.Config.AuthMode, d.Config.PatternStore, d.Store)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	v1 := router.Group("/api/v1")
	v1.Use(apimiddleware.Auth(d.Config))
	{
		composeHandler := handlers.NewComposeHandler(d.Composer, d.Runs, d.ComposeTimeout)
		v1.POST("/compose", composeHandler.Compose)

		patternHandler := handlers.NewPatternHandler(d.Retriever, d.Indexer)
		v1.POST("/patterns/search", patternHandler.Search)
		v1.POST("/patterns", patternHandler.Index)
	}

	return router
}
