// Package config loads and validates evalchat configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSystemInstruction is the fixed system prompt prefixed to every
// rendered history when the config does not override it.
const DefaultSystemInstruction = "You are a coding assistant embedded in a REPL. " +
	"When you want code executed, put it in a fenced code block tagged with its language. " +
	"Only the last block of your reply is run; its output is fed back to you as the next message."

// Config holds all evalchat configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the model transport.
type LLMConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	Timeout           string `yaml:"timeout"`
	SystemInstruction string `yaml:"system_instruction"`
}

// ExecutionConfig configures the code executor.
type ExecutionConfig struct {
	// Timeout bounds a single code execution. The orchestrator itself never
	// imposes one; runaway protection belongs to the executor.
	Timeout string `yaml:"timeout"`
}

// HistoryConfig configures the optional durable operator-input log.
type HistoryConfig struct {
	// InputLogPath is the SQLite file recording operator inputs. Empty
	// disables the log.
	InputLogPath string `yaml:"input_log_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:             "gpt-4o",
			BaseURL:           "https://api.openai.com/v1",
			Timeout:           "10m",
			SystemInstruction: DefaultSystemInstruction,
		},
		Execution: ExecutionConfig{
			Timeout: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, applying defaults and
// environment overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("EVALCHAT_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("EVALCHAT_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("EVALCHAT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("EVALCHAT_INPUT_LOG"); path != "" {
		c.History.InputLogPath = path
	}
}

// Validate fails fast on configuration the session cannot start with.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set EVALCHAT_API_KEY or OPENAI_API_KEY)")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); c.LLM.Timeout != "" && err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Execution.Timeout); c.Execution.Timeout != "" && err != nil {
		return fmt.Errorf("execution.timeout: %w", err)
	}
	return nil
}

// GetLLMTimeout returns the model request timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetExecutionTimeout returns the code execution timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
