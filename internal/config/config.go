package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Auth modes
	AuthModeNone    = "none"    // self-hosted, local dev
	AuthModeGateway = "gateway" // trust X-User-* headers from an upstream gateway
	AuthModeJWT     = "jwt"     // verify HS256 bearer tokens with JWTSecret

	// Pattern store backends
	PatternStoreMemory   = "memory"
	PatternStoreSQLite   = "sqlite"
	PatternStorePostgres = "postgres"

	maxExternalAttempts = 3
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// LLM
	OpenAIAPIKey   string // OpenAI API key for GPT models and embeddings
	GeminiAPIKey   string // Google Gemini API key
	LLMProvider    string // "openai" or "gemini"; empty infers from LLMModel
	LLMModel       string
	LLMReasoning   string // reasoning effort for reasoning models: none, minimal, low, medium, high
	EmbeddingModel string

	// Observability
	SentryDSN         string // Sentry DSN for error tracking
	LangfusePublicKey string // Langfuse public key
	LangfuseSecretKey string // Langfuse secret key
	LangfuseHost      string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled   bool   // Feature flag for Langfuse

	// Auth
	AuthMode  string
	JWTSecret string

	// Storage
	DatabaseURL   string // Postgres DSN; optional, enables run history
	PatternStore  string // memory | sqlite | postgres
	PatternDBPath string // SQLite file for the pattern index

	// Retrieval
	RetrievalTopK       int // patterns kept per kind
	RetrievalMinPerKind int // per-kind threshold that stops tier escalation

	// External calls
	ExternalTimeoutSeconds int
	ExternalMaxAttempts    int // clamped to [1, 3]

	// Export
	OutputDir string
}

func Load() *Config {
	return &Config{
		Environment:            getEnv("ENVIRONMENT", "development"),
		Port:                   getEnv("PORT", "8080"),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		LLMProvider:            strings.ToLower(getEnv("LLM_PROVIDER", "")),
		LLMModel:               getEnv("LLM_MODEL", "gpt-5-mini"),
		LLMReasoning:           strings.ToLower(getEnv("LLM_REASONING_MODE", "low")),
		EmbeddingModel:         getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		SentryDSN:              getEnv("SENTRY_DSN", ""),
		LangfusePublicKey:      getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:      getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:           getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:        getEnv("LANGFUSE_ENABLED", "false") == "true",
		AuthMode:               strings.ToLower(getEnv("AUTH_MODE", AuthModeNone)),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		PatternStore:           strings.ToLower(getEnv("PATTERN_STORE", PatternStoreSQLite)),
		PatternDBPath:          getEnv("PATTERN_DB_PATH", "data/patterns.db"),
		RetrievalTopK:          getEnvInt("RETRIEVAL_TOP_K", 8),
		RetrievalMinPerKind:    getEnvInt("RETRIEVAL_MIN_PER_KIND", 3),
		ExternalTimeoutSeconds: getEnvInt("EXTERNAL_TIMEOUT_SECONDS", 20),
		ExternalMaxAttempts:    clamp(getEnvInt("EXTERNAL_MAX_ATTEMPTS", 2), 1, maxExternalAttempts),
		OutputDir:              getEnv("OUTPUT_DIR", "output"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsGatewayMode returns true if running behind an auth gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == AuthModeGateway
}

// IsJWTMode returns true if bearer tokens are verified locally
func (c *Config) IsJWTMode() bool {
	return c.AuthMode == AuthModeJWT
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ExternalTimeout is the per-attempt budget for LLM, embedding and store calls.
func (c *Config) ExternalTimeout() time.Duration {
	if c.ExternalTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.ExternalTimeoutSeconds) * time.Second
}
