// Package config loads the YAML configuration of the chatbridge command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
)

// Executor kinds.
const (
	ExecutorNone   = "none"
	ExecutorOllama = "ollama"
	ExecutorHTTP   = "http"
)

// ErrInvalidConfig is returned by Validate and Load for a configuration that cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the command configuration.
type Config struct {
	Backend   string         `yaml:"backend"`
	Model     string         `yaml:"model"`
	BaseURL   string         `yaml:"base_url"`
	APIKeyEnv string         `yaml:"api_key_env"`
	Executor  ExecutorConfig `yaml:"executor"`
	Presets   PresetsConfig  `yaml:"presets"`
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
}

// ExecutorConfig selects the command executor used for tool-bearing requests.
type ExecutorConfig struct {
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`
}

// PresetsConfig names where presets come from: GitURL, then URL, then Dir.
// GitTokenEnv names the environment variable holding an HTTPS token for GitURL.
type PresetsConfig struct {
	Dir         string        `yaml:"dir"`
	URL         string        `yaml:"url"`
	GitURL      string        `yaml:"git_url"`
	GitBranch   string        `yaml:"git_branch"`
	GitDir      string        `yaml:"git_dir"`
	GitTokenEnv string        `yaml:"git_token_env"`
	TTL         time.Duration `yaml:"ttl"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is given: a local Ollama
// server acting as both backend and executor.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendOllama
	}
	if c.Executor.Kind == "" {
		if c.Backend == BackendOllama {
			c.Executor.Kind = ExecutorOllama
		} else {
			c.Executor.Kind = ExecutorNone
		}
	}
	if c.APIKeyEnv == "" {
		switch c.Backend {
		case BackendOpenAI:
			c.APIKeyEnv = "OPENAI_API_KEY"
		case BackendAnthropic:
			c.APIKeyEnv = "ANTHROPIC_API_KEY"
		case BackendGemini:
			c.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if c.Presets.GitBranch == "" {
		c.Presets.GitBranch = "main"
	}
	if c.Presets.TTL == 0 {
		c.Presets.TTL = 5 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Load reads YAML configuration from path, applies defaults and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath) // #nosec G304 -- path comes from the command line
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI, BackendOllama, BackendAnthropic, BackendGemini:
	default:
		return fmt.Errorf("%w: backend %q must be one of openai, ollama, anthropic, gemini", ErrInvalidConfig, c.Backend)
	}
	switch c.Executor.Kind {
	case ExecutorNone, ExecutorOllama:
	case ExecutorHTTP:
		if strings.TrimSpace(c.Executor.BaseURL) == "" {
			return fmt.Errorf("%w: executor.base_url is required for executor kind %q", ErrInvalidConfig, ExecutorHTTP)
		}
	default:
		return fmt.Errorf("%w: executor.kind %q must be one of none, ollama, http", ErrInvalidConfig, c.Executor.Kind)
	}
	if u := c.Presets.URL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("%w: presets.url %q must be an http or https URL", ErrInvalidConfig, u)
	}
	if c.Presets.TTL < 0 {
		return fmt.Errorf("%w: presets.ttl must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	}
	return nil
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (c Config) APIKey() string {
	return getenv(c.APIKeyEnv)
}

// GitToken returns the value of the environment variable named by Presets.GitTokenEnv.
func (c Config) GitToken() string {
	return getenv(c.Presets.GitTokenEnv)
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
