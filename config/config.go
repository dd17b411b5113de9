// Package config provides configuration loading and management for intakekit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/intakekit/intakekit/jira"
)

// Config represents the complete intakekit configuration.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Model     ModelConfig    `yaml:"model"`
	Sessions  SessionsConfig `yaml:"sessions"`
	Templates TemplateConfig `yaml:"templates"`
	Jira      jira.Config    `yaml:"jira"`
	NATS      NATSConfig     `yaml:"nats"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
}

// ModelConfig configures the chat model endpoint.
type ModelConfig struct {
	// Provider selects the API codec: "anthropic", "openai", or "ollama".
	Provider string `yaml:"provider"`
	// Model is the model identifier (e.g., "qwen2.5-coder:32b").
	Model string `yaml:"model"`
	// Endpoint overrides the provider's default API host.
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
	// MaxTokens bounds reply length. 0 uses the provider default.
	MaxTokens int `yaml:"max_tokens"`
	// Timeout is the maximum time to wait for model responses.
	Timeout time.Duration `yaml:"timeout"`
	// MaxTurns bounds how many transcript entries are sent per request.
	MaxTurns int `yaml:"max_turns"`
}

// SessionsConfig configures session lifecycle timing.
type SessionsConfig struct {
	// ExpiryWindow is how long a session may idle before expiring.
	ExpiryWindow time.Duration `yaml:"expiry_window"`
	// RemovalWindow is how long after last activity an expired or
	// cancelled session is deleted.
	RemovalWindow time.Duration `yaml:"removal_window"`
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TemplateConfig configures template discovery.
type TemplateConfig struct {
	// Dir is the directory scanned for template YAML files. Empty means
	// only the built-in template is available.
	Dir string `yaml:"dir"`
	// Watch enables cache invalidation on file changes.
	Watch bool `yaml:"watch"`
}

// NATSConfig configures lifecycle event publishing.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables event publishing.
	URL string `yaml:"url"`
	// SubjectPrefix is the root of the event subject space.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Model: ModelConfig{
			Provider:    "ollama",
			Model:       "qwen2.5-coder:32b",
			Endpoint:    "",
			Temperature: 0.2,
			Timeout:     3 * time.Minute,
			MaxTurns:    20,
		},
		Sessions: SessionsConfig{
			ExpiryWindow:  30 * time.Minute,
			RemovalWindow: 10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Templates: TemplateConfig{
			Dir:   "templates",
			Watch: true,
		},
		Jira: jira.Config{
			IssueType: "Task",
		},
		NATS: NATSConfig{
			SubjectPrefix: "intake.session",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Sessions.ExpiryWindow <= 0 {
		return fmt.Errorf("sessions.expiry_window must be positive")
	}
	if c.Sessions.RemovalWindow <= 0 {
		return fmt.Errorf("sessions.removal_window must be positive")
	}
	if c.Sessions.RemovalWindow >= c.Sessions.ExpiryWindow {
		return fmt.Errorf("sessions.removal_window must be shorter than sessions.expiry_window")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, applied over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
