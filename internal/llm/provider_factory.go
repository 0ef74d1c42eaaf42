package llm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderFactory creates providers based on model name or explicit provider choice
type ProviderFactory struct {
	openaiAPIKey string
	geminiAPIKey string
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(openaiAPIKey, geminiAPIKey string) *ProviderFactory {
	return &ProviderFactory{
		openaiAPIKey: openaiAPIKey,
		geminiAPIKey: geminiAPIKey,
	}
}

// GetProvider returns the appropriate provider for the given model/provider name
func (f *ProviderFactory) GetProvider(ctx context.Context, model, providerName string) (Provider, error) {
	if providerName != "" {
		return f.getProviderByName(ctx, providerName)
	}
	return f.getProviderByModel(ctx, model)
}

// GetEmbedder returns an embedder for the given embedding model.
func (f *ProviderFactory) GetEmbedder(ctx context.Context, model string) (Embedder, error) {
	if isGeminiModel(model) {
		return f.gemini(ctx)
	}
	return f.openai()
}

// getProviderByName creates a provider by explicit name
func (f *ProviderFactory) getProviderByName(ctx context.Context, providerName string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case providerNameOpenAI:
		return f.openai()
	case providerNameGemini:
		return f.gemini(ctx)
	default:
		return nil, fmt.Errorf("unknown provider: %s (allowed: openai, gemini)", providerName)
	}
}

// getProviderByModel infers provider from model name
func (f *ProviderFactory) getProviderByModel(ctx context.Context, model string) (Provider, error) {
	if isGeminiModel(model) {
		return f.gemini(ctx)
	}
	// GPT models and anything unknown go to OpenAI
	return f.openai()
}

func (f *ProviderFactory) openai() (*OpenAIProvider, error) {
	if f.openaiAPIKey == "" {
		return nil, fmt.Errorf("openai API key not configured: %w", ErrNotConfigured)
	}
	return NewOpenAIProvider(f.openaiAPIKey), nil
}

func (f *ProviderFactory) gemini(ctx context.Context) (*GeminiProvider, error) {
	if f.geminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured: %w", ErrNotConfigured)
	}
	return NewGeminiProvider(ctx, f.geminiAPIKey)
}

func isGeminiModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gemini") || strings.HasPrefix(m, "text-embedding-004") || strings.HasPrefix(m, "embedding-")
}
