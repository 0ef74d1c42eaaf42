package app

import (
	"context"
	"testing"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:         "test",
		LLMModel:            "gpt-5-mini",
		EmbeddingModel:      "text-embedding-3-small",
		PatternStore:        config.PatternStoreMemory,
		RetrievalTopK:       8,
		RetrievalMinPerKind: 3,
		ExternalMaxAttempts: 2,
		OutputDir:           t.TempDir(),
	}
}

func TestBuild_WithoutExternalServices(t *testing.T) {
	s, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Nil(t, s.DB)
	assert.Nil(t, s.RunStore())
	assert.False(t, s.Client.CanGenerate())
	assert.False(t, s.Client.CanEmbed())
	require.NotNil(t, s.Controller)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := s.Controller.Run(ctx, models.RequestInput{Description: "a short pop song at 120 bpm"})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.NotEmpty(t, result.MIDIPath())
	assert.Equal(t, models.TierBuiltin, result.Patterns.Tier)
}

func TestBuild_UnknownPatternStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.PatternStore = "redis"

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExternalTimeoutSeconds = 7

	p := Policy(cfg)
	assert.Equal(t, 2, p.Attempts)
	assert.Equal(t, 7*time.Second, p.Timeout)
}
