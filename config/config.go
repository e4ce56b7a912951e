// Package config loads bridge configuration from a YAML file and keeps it
// fresh by watching the file for changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full bridge configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Stream StreamConfig `yaml:"stream"`
	Agents []Agent      `yaml:"agents"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StreamConfig configures per-turn streaming behavior.
type StreamConfig struct {
	// RequestTimeout bounds one whole turn, from send to final response.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CancelTimeout bounds the best-effort upstream cancel notification.
	CancelTimeout time.Duration `yaml:"cancel_timeout"`
}

// Agent is one allowlisted upstream agent.
type Agent struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Default returns the configuration used when the file omits a setting.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:  ":8080",
			LogLevel: "info",
		},
		Stream: StreamConfig{
			RequestTimeout: 5 * time.Minute,
			CancelTimeout:  5 * time.Second,
		},
	}
}

// Load reads and validates the configuration at path. Missing settings fall
// back to defaults; api_key values may reference environment variables with
// $NAME syntax.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	for i := range cfg.Agents {
		cfg.Agents[i].APIKey = os.ExpandEnv(cfg.Agents[i].APIKey)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural requirements.
func (c Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent with url %q has no name", a.URL)
		}
		if a.URL == "" {
			return fmt.Errorf("agent %q has no url", a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Agent looks up an allowlisted agent by name.
func (c Config) Agent(name string) (Agent, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// AllowedAgentURL reports whether url may be proxied to. An empty allowlist
// permits any agent.
func (c Config) AllowedAgentURL(url string) bool {
	if len(c.Agents) == 0 {
		return true
	}
	for _, a := range c.Agents {
		if a.URL == url {
			return true
		}
	}
	return false
}
