// Package app builds the services shared by the HTTP server, the MCP server
// and the indexing tool from one Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Conceptual-Machines/magda-composer/internal/agents/export"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/coverage"
	"github.com/Conceptual-Machines/magda-composer/internal/database"
	"github.com/Conceptual-Machines/magda-composer/internal/llm"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
	"github.com/Conceptual-Machines/magda-composer/internal/observability"
	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/Conceptual-Machines/magda-composer/internal/pipeline"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
	"github.com/Conceptual-Machines/magda-composer/internal/retry"
	"gorm.io/gorm"
)

// Services holds everything a front end needs. DB and Runs are nil when no
// DATABASE_URL is set.
type Services struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      patternstore.Store
	Client     *llm.Client
	Retriever  *retrieval.Retriever
	Indexer    *retrieval.Indexer
	Runs       *database.RunStore
	Recorder   *metrics.Recorder
	Langfuse   *observability.LangfuseClient
	Controller *pipeline.Controller
}

// Build connects the backends and wires the pipeline. Missing LLM keys are not
// an error: stages fall back to their heuristics.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{Config: cfg}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	s.DB = db
	if db != nil {
		s.Runs = database.NewRunStore(db)
	}

	store, err := patternstore.Open(cfg.PatternStore, cfg.PatternDBPath, db)
	if err != nil {
		return nil, fmt.Errorf("open pattern store: %w", err)
	}
	s.Store = store

	cw, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("⚠️  CloudWatch metrics unavailable: %v", err)
	}
	s.Recorder = metrics.NewRecorder(metrics.NewSentryMetrics(), cw)
	s.Langfuse = observability.InitializeLangfuse(ctx, cfg)
	s.Client = newClient(ctx, cfg, s.Recorder)

	var embedder retrieval.Embedder
	if s.Client.CanEmbed() {
		embedder = s.Client
	}
	s.Retriever = retrieval.New(store, embedder, retrieval.Options{
		TopK:       cfg.RetrievalTopK,
		MinPerKind: cfg.RetrievalMinPerKind,
		Policy:     Policy(cfg),
	})
	s.Indexer = retrieval.NewIndexer(store, embedder)

	renderers := []export.Renderer{export.NewSMFRenderer(cfg.OutputDir)}
	if s.Runs != nil {
		renderers = append(renderers, export.NewRunRecorder(s.Runs))
	}

	stages := pipeline.DefaultStages(pipeline.Deps{
		Client:    s.Client,
		Retriever: s.Retriever,
		Recorder:  s.Recorder,
		Renderers: renderers,
		Coverage:  coverage.Options{},
	})
	s.Controller, err = pipeline.NewController(stages,
		pipeline.WithRecorder(s.Recorder),
		pipeline.WithLangfuse(s.Langfuse),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RunStore returns Runs as an export.RunStore, or nil without a database.
func (s *Services) RunStore() export.RunStore {
	if s.Runs == nil {
		return nil
	}
	return s.Runs
}

// Close releases the pattern store and the database handle.
func (s *Services) Close() error {
	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// Policy is the retry policy for every external call.
func Policy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = cfg.ExternalMaxAttempts
	p.Timeout = cfg.ExternalTimeout()
	return p
}

func newClient(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder) *llm.Client {
	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	opts := []llm.ClientOption{
		llm.WithPolicy(Policy(cfg)),
		llm.WithRecorder(observability.NewCallRecorder(recorder)),
		llm.WithReasoningMode(cfg.LLMReasoning),
	}

	embedder, err := factory.GetEmbedder(ctx, cfg.EmbeddingModel)
	if err != nil {
		log.Printf("⚠️  Embeddings disabled, retrieval will serve built-in patterns: %v", err)
	} else {
		opts = append(opts, llm.WithEmbedder(embedder, cfg.EmbeddingModel))
	}

	provider, err := factory.GetProvider(ctx, cfg.LLMModel, cfg.LLMProvider)
	if err != nil {
		log.Printf("⚠️  LLM disabled, stages will use heuristics: %v", err)
		return llm.NewClient(nil, cfg.LLMModel, opts...)
	}
	log.Printf("✅ LLM client ready (model: %s)", cfg.LLMModel)
	return llm.NewClient(provider, cfg.LLMModel, opts...)
}
