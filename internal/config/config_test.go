package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, DefaultSystemInstruction, cfg.LLM.SystemInstruction)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("llm:\n  model: test-model\n  api_key: sk-test\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "30s", cfg.Execution.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EVALCHAT_API_KEY", "sk-env")
	t.Setenv("EVALCHAT_MODEL", "env-model")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "env-model", cfg.LLM.Model)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.LLM.APIKey = "sk" }, false},
		{"missing api key", func(c *Config) {}, true},
		{"missing base url", func(c *Config) { c.LLM.APIKey = "sk"; c.LLM.BaseURL = "" }, true},
		{"missing model", func(c *Config) { c.LLM.APIKey = "sk"; c.LLM.Model = "" }, true},
		{"bad llm timeout", func(c *Config) { c.LLM.APIKey = "sk"; c.LLM.Timeout = "soon" }, true},
		{"bad exec timeout", func(c *Config) { c.LLM.APIKey = "sk"; c.Execution.Timeout = "later" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimeoutAccessorsFallBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "bogus"
	cfg.Execution.Timeout = ""
	assert.Equal(t, "10m0s", cfg.GetLLMTimeout().String())
	assert.Equal(t, "30s", cfg.GetExecutionTimeout().String())
}
