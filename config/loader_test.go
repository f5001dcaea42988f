package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 10*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 3, cfg.Workflow.MaxPlanningCycles)
	assert.Equal(t, 200, cfg.Workflow.MaxSteps)
	assert.InDelta(t, 0.005, cfg.Workflow.ThresholdMargin, 1e-9)
	assert.Equal(t, 5, cfg.Workflow.MaxResultsPerQuery)
	assert.Equal(t, 200*time.Millisecond, cfg.Workflow.EventPollTimeout)
	assert.Equal(t, "https://export.arxiv.org/api/query", cfg.Arxiv.BaseURL)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.False(t, cfg.Telemetry.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
server:
  http_port: 9999
workflow:
  max_planning_cycles: 2
  threshold_margin: 0.01
llm:
  model: gemini-2.5-pro
  api_key: from-file
redis:
  addr: localhost:6379
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, 2, cfg.Workflow.MaxPlanningCycles)
	assert.InDelta(t, 0.01, cfg.Workflow.ThresholdMargin, 1e-9)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	// untouched fields keep their defaults
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 200, cfg.Workflow.MaxSteps)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESEARCHFLOW_SERVER_HTTP_PORT", "7070")
	t.Setenv("RESEARCHFLOW_WORKFLOW_MAX_PLANNING_CYCLES", "5")
	t.Setenv("RESEARCHFLOW_WORKFLOW_EVENT_POLL_TIMEOUT", "500ms")
	t.Setenv("RESEARCHFLOW_LLM_API_KEY", "env-key")
	t.Setenv("RESEARCHFLOW_LLM_TEMPERATURE", "0.7")
	t.Setenv("RESEARCHFLOW_SERVER_API_KEYS", "k1, k2,k3")
	t.Setenv("RESEARCHFLOW_TELEMETRY_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Workflow.MaxPlanningCycles)
	assert.Equal(t, 500*time.Millisecond, cfg.Workflow.EventPollTimeout)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.InDelta(t, 0.7, float64(cfg.LLM.Temperature), 1e-6)
	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Server.APIKeys)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: from-file\n"), 0o644))

	t.Setenv("RESEARCHFLOW_LLM_MODEL", "from-env")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6060")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.HTTPPort)
}

func TestValidatorFailure(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Workflow.MaxPlanningCycles = -1
	cfg.Workflow.ThresholdMargin = -0.1
	cfg.LLM.Temperature = 3

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "max_planning_cycles")
	assert.Contains(t, err.Error(), "threshold_margin")
	assert.Contains(t, err.Error(), "temperature")
}
