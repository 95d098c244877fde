package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.Convert.Timeout)
	assert.Equal(t, 2, cfg.Convert.MaxRetries)
	assert.Equal(t, 20, cfg.Pipeline.AcceptConfidence)
	assert.Equal(t, []string{"vehicle.make", "vehicle.model"}, cfg.Pipeline.RequiredFields)
	assert.True(t, cfg.Convert.FallbackOnEmpty)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 15s
pipeline:
  accept_confidence: 35
  required_fields: [vehicle.make, commercial.monthly_rate]
convert:
  max_retries: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model, "env overrides file")
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 35, cfg.Pipeline.AcceptConfidence)
	assert.Equal(t, []string{"vehicle.make", "commercial.monthly_rate"}, cfg.Pipeline.RequiredFields)
	assert.Equal(t, 4, cfg.Convert.MaxRetries)
	assert.Equal(t, "deu", cfg.Convert.Language, "untouched keys keep defaults")
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg.Database.Driver = "sqlite"
	cfg.LLM.APIKey = "key"
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "vertex"
	require.Error(t, cfg.Validate())
	cfg.LLM.Project, cfg.LLM.Region = "proj", "europe-west3"
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.AcceptConfidence = 0
	require.NoError(t, cfg.Validate())
	cfg.Pipeline.AcceptConfidence = 120
	require.Error(t, cfg.Validate())
}
