// Package config loads shellm configuration from a YAML file, applies
// defaults, and lets a handful of environment variables override the
// file for quick experiments.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all shellm configuration.
type Config struct {
	// Ollama backend settings
	Ollama OllamaConfig `yaml:"ollama"`

	// Conversation window settings
	Conversation ConversationConfig `yaml:"conversation"`

	// Agent loop settings
	Agent AgentConfig `yaml:"agent"`

	// Shell executor settings
	Shell ShellConfig `yaml:"shell"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// OllamaConfig configures the model backend.
type OllamaConfig struct {
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"` // duration string, e.g. "120s"
}

// ConversationConfig configures the history window.
type ConversationConfig struct {
	// MaxTurns bounds the history; <= 0 means unbounded.
	MaxTurns int `yaml:"max_turns"`
}

// AgentConfig configures the autonomous loop.
type AgentConfig struct {
	InitialPrompt  string `yaml:"initial_prompt"`
	CommandTimeout string `yaml:"command_timeout"` // duration string
	FeedbackPolicy string `yaml:"feedback_policy"` // "both" or "prefer-stderr"
	MaxCycles      int    `yaml:"max_cycles"`      // 0 = until interrupted
}

// ShellConfig configures command execution.
type ShellConfig struct {
	Interpreter    []string `yaml:"interpreter"` // e.g. ["/bin/bash", "-c"]
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
	WorkDir        string   `yaml:"work_dir"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: "120s",
		},
		Conversation: ConversationConfig{
			MaxTurns: -1,
		},
		Agent: AgentConfig{
			CommandTimeout: "30s",
			FeedbackPolicy: "both",
		},
		Shell: ShellConfig{
			Interpreter:    []string{"/bin/sh", "-c"},
			MaxOutputBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shellm.yaml"
	}
	return filepath.Join(home, ".shellm.yaml")
}

// Load reads path, layering the file over Default(). A missing file is
// not an error: defaults apply. Environment overrides run last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHELLM_HOST"); v != "" {
		c.Ollama.Host = v
	}
	if v := os.Getenv("SHELLM_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("SHELLM_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Conversation.MaxTurns = n
		}
	}
}

// Validate rejects values the rest of the system cannot honor.
func (c *Config) Validate() error {
	if c.Ollama.Timeout != "" {
		if _, err := time.ParseDuration(c.Ollama.Timeout); err != nil {
			return fmt.Errorf("ollama.timeout: %w", err)
		}
	}
	if c.Agent.CommandTimeout != "" {
		if _, err := time.ParseDuration(c.Agent.CommandTimeout); err != nil {
			return fmt.Errorf("agent.command_timeout: %w", err)
		}
	}
	switch c.Agent.FeedbackPolicy {
	case "", "both", "prefer-stderr":
	default:
		return fmt.Errorf("agent.feedback_policy: unknown policy %q", c.Agent.FeedbackPolicy)
	}
	if len(c.Shell.Interpreter) == 0 {
		return fmt.Errorf("shell.interpreter: must name an interpreter")
	}
	return nil
}

// RequestTimeout returns the parsed backend timeout.
func (c *OllamaConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Timeout returns the parsed per-command timeout.
func (c *AgentConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
