package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("SERPER_API_KEY", "serper-key")
	t.Setenv("JINA_API_KEY", "jina-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, DefaultModelID, cfg.DefaultModel)
	assert.Equal(t, cfg.DefaultModel, cfg.SearchModel)
	assert.Equal(t, cfg.DefaultModel, cfg.OrchestratorModel)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.SearxngConfigured())
	assert.False(t, cfg.WolframConfigured())
	assert.False(t, cfg.InfinityConfigured())
}

func TestLoad_ModelOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LITELLM_MODEL_ID", "openrouter/foo/bar")
	t.Setenv("LITELLM_SEARCH_MODEL_ID", "openrouter/search/model")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openrouter/foo/bar", cfg.DefaultModel)
	assert.Equal(t, "openrouter/search/model", cfg.SearchModel)
	// Orchestrator falls back to the default model.
	assert.Equal(t, "openrouter/foo/bar", cfg.OrchestratorModel)
}

func TestValidate_MissingKeys(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("JINA_API_KEY", "jina-key")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
	assert.Contains(t, err.Error(), "SERPER_API_KEY")
	assert.NotContains(t, err.Error(), "JINA_API_KEY")
}

func TestOptionalCapabilities(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SEARXNG_INSTANCE_URL", "https://searx.example.com")
	t.Setenv("WOLFRAM_ALPHA_APP_ID", "APPID-123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.SearxngConfigured())
	assert.True(t, cfg.WolframConfigured())
	assert.False(t, cfg.InfinityConfigured())
}
