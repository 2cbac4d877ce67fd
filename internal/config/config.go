// Package config loads server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelInfo describes one entry of the model catalog.
type ModelInfo struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Provider string `yaml:"provider" json:"provider"`
}

// Config holds all server settings.
type Config struct {
	Addr                  string      `yaml:"addr"`
	LogLevel              string      `yaml:"log_level"`
	CORSOrigins           []string    `yaml:"cors_origins"`
	DefaultModel          string      `yaml:"default_model"`
	Models                []ModelInfo `yaml:"models"`
	MessageTimeoutSeconds int         `yaml:"message_timeout_seconds"`
	TaskRetention         string      `yaml:"task_retention"`
	ShellTimeout          string      `yaml:"shell_timeout"`
	ToolGuard             string      `yaml:"tool_guard"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                  ":8000",
		LogLevel:              "info",
		CORSOrigins:           []string{"*"},
		DefaultModel:          "claude-3-5-sonnet",
		Models:                DefaultModels(),
		MessageTimeoutSeconds: 120,
		TaskRetention:         "24h",
		ShellTimeout:          "5m",
	}
}

// DefaultModels returns the built-in model catalog.
func DefaultModels() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-3-5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "anthropic"},
		{ID: "claude-3-5-haiku", Name: "Claude 3.5 Haiku", Provider: "anthropic"},
		{ID: "gpt-4o", Name: "GPT-4 Optimized", Provider: "openai"},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai"},
		{ID: "deepseek-v3", Name: "DeepSeek V3", Provider: "deepseek"},
		{ID: "qwen2.5:14b", Name: "Qwen 2.5 14B", Provider: "ollama"},
	}
}

// Load reads a YAML config file over the defaults and then applies
// environment overrides. An empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if _, err := cfg.RetentionDuration(); err != nil {
		return cfg, err
	}
	if _, err := cfg.ShellTimeoutDuration(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDCLAW_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("REDCLAW_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("REDCLAW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("REDCLAW_TOOL_GUARD"); v != "" {
		c.ToolGuard = v
	}
}

// MessageTimeout returns the bounded wait applied to message requests.
func (c Config) MessageTimeout() time.Duration {
	if c.MessageTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.MessageTimeoutSeconds) * time.Second
}

// RetentionDuration parses the task retention window. Empty disables pruning.
func (c Config) RetentionDuration() (time.Duration, error) {
	if c.TaskRetention == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TaskRetention)
	if err != nil {
		return 0, fmt.Errorf("config: task_retention: %w", err)
	}
	return d, nil
}

// ShellTimeoutDuration parses the per-command shell timeout.
func (c Config) ShellTimeoutDuration() (time.Duration, error) {
	if c.ShellTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ShellTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: shell_timeout: %w", err)
	}
	return d, nil
}

// CatalogModels returns the model catalog with the current default model
// inserted at the front when it is not already listed.
func (c Config) CatalogModels() []ModelInfo {
	for _, m := range c.Models {
		if m.ID == c.DefaultModel {
			return c.Models
		}
	}
	return append([]ModelInfo{{
		ID:       c.DefaultModel,
		Name:     c.DefaultModel,
		Provider: "custom",
	}}, c.Models...)
}
