package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/api"
	"github.com/Conceptual-Machines/magda-composer/internal/app"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const sentryFlushTimeout = 2 * time.Second

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-api-key":     true,
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	if flush := initSentry(cfg); flush != nil {
		defer flush()
	}

	services, err := app.Build(context.Background(), cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to initialize services: ", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Printf("Failed to close services: %v", err)
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(api.Dependencies{
		Config:    cfg,
		Version:   releaseVersion,
		DB:        services.DB,
		Composer:  services.Controller,
		Retriever: services.Retriever,
		Indexer:   services.Indexer,
		Store:     services.Store,
		Runs:      services.RunStore(),
		Recorder:  services.Recorder,
	})

	log.Printf("🚀 Starting server on port %s (auth: %s, patterns: %s)", cfg.Port, cfg.AuthMode, cfg.PatternStore)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Printf("Server stopped: %v", err)
	}
}

// initSentry returns a flush func, or nil when Sentry is not configured.
func initSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "magda-composer@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		EnableLogs:       true,
		Debug:            !cfg.IsProduction(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = redactHeaders(event.Request.Headers)
			}
			return event
		},
	})
	if err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		return nil
	}
	log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[strings.ToLower(k)] {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}
