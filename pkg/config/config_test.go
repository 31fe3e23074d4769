package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileSizeLimit(t *testing.T) {
	tmpDir := t.TempDir()

	largeFile := filepath.Join(tmpDir, "large.yaml")
	data := strings.Repeat("x: value\n", 200000) // ~1.6MB
	require.NoError(t, os.WriteFile(largeFile, []byte(data), 0600))

	_, err := LoadConfig(largeFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadConfig_ValidFileAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	validConfig := `
registry:
  max_shadow_active: 4
llm:
  model: gpt-4o-mini
`
	validFile := filepath.Join(tmpDir, "valid.yaml")
	require.NoError(t, os.WriteFile(validFile, []byte(validConfig), 0600))

	cfg, err := LoadConfig(validFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 4, cfg.Registry.MaxShadowActive)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	// defaults still applied for untouched fields
	assert.Equal(t, 3, cfg.Registry.CircuitBreakerThreshold)
	assert.Equal(t, 300, cfg.Risk.MaxScenarioNodes)
	assert.Equal(t, 32, cfg.Epistemic.MaxHypotheses)
	assert.Equal(t, 10, cfg.Planner.ReactiveMaxPlanLength)
}

func TestLoadConfig_NonexistentFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	invalidYAML := "default_model: gpt-4\ninvalid yaml here: [[[\n"
	invalidFile := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalidFile, []byte(invalidYAML), 0600))

	_, err := LoadConfig(invalidFile)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Registry.FailureThreshold = cfg.Registry.SuccessThreshold
	require.Error(t, cfg.Validate())
}

func TestDefaultEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "empty.yaml")
	require.NoError(t, os.WriteFile(f, []byte("{}"), 0600))

	cfg, err := LoadConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.LLM.APIKey)
}
