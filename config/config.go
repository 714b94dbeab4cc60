// Package config loads and validates the environment driven configuration of
// the deep search service. All external credentials and model identifiers are
// supplied through environment variables; missing required keys abort startup.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Defaults used when the corresponding environment variables are unset.
const (
	DefaultModelID = "openrouter/google/gemini-2.0-flash-001"
	DefaultAddr    = ":8000"

	// Version is the service version reported by /config.
	Version = "1.0.0"
)

// Config holds all settings for the deep search service.
type Config struct {
	// HTTP server
	Addr            string        `env:"DEEPSEARCH_ADDR" envDefault:":8000"`
	MaxInFlight     int           `env:"DEEPSEARCH_MAX_IN_FLIGHT" envDefault:"32"`
	ShutdownTimeout time.Duration `env:"DEEPSEARCH_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Search providers
	SerperAPIKey       string `env:"SERPER_API_KEY"`
	SearxngInstanceURL string `env:"SEARXNG_INSTANCE_URL"`
	SearxngAPIKey      string `env:"SEARXNG_API_KEY"`

	// Rerankers
	JinaAPIKey      string `env:"JINA_API_KEY"`
	InfinityBaseURL string `env:"INFINITY_BASE_URL"`

	// Model backends
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY"`
	DefaultModel      string `env:"LITELLM_MODEL_ID"`
	SearchModel       string `env:"LITELLM_SEARCH_MODEL_ID"`
	OrchestratorModel string `env:"LITELLM_ORCHESTRATOR_MODEL_ID"`

	// Tools
	WolframAppID string `env:"WOLFRAM_ALPHA_APP_ID"`

	// Logging
	LogLevel  string `env:"DEEPSEARCH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DEEPSEARCH_LOG_FORMAT" envDefault:"json"`
}

// Load parses the configuration from the process environment and applies
// model identifier fallbacks.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModelID
	}
	if c.SearchModel == "" {
		c.SearchModel = c.DefaultModel
	}
	if c.OrchestratorModel == "" {
		c.OrchestratorModel = c.DefaultModel
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
}

// Validate checks that the required credentials for the default capability
// set are present. Optional capabilities (SearXNG, Wolfram) are allowed to be
// absent; the service degrades to "not configured" for those.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenRouterAPIKey == "" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY is required"))
	}
	if c.SerperAPIKey == "" {
		errs = append(errs, errors.New("SERPER_API_KEY is required"))
	}
	if c.JinaAPIKey == "" {
		errs = append(errs, errors.New("JINA_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// SearxngConfigured reports whether the alternate SearXNG backend is usable.
func (c *Config) SearxngConfigured() bool { return c.SearxngInstanceURL != "" }

// InfinityConfigured reports whether the self-hosted Infinity reranker is usable.
func (c *Config) InfinityConfigured() bool { return c.InfinityBaseURL != "" }

// WolframConfigured reports whether the Wolfram|Alpha tool is usable.
func (c *Config) WolframConfigured() bool { return c.WolframAppID != "" }

// CurrentDate returns the human readable date prefixed to every query,
// e.g. "August 26, 2026".
func CurrentDate() string {
	return time.Now().Format("January 2, 2006")
}
