// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonathan/content-guard/internal/generation"
	"github.com/jonathan/content-guard/internal/llm"
	"github.com/jonathan/content-guard/internal/schemas"
	"github.com/jonathan/content-guard/internal/search"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from CLI flags, the environment
// or Defaults.
type Config struct {
	// LLM
	Provider string `json:"provider,omitempty"` // gemini, openai or ollama
	Model    string `json:"model,omitempty"`    // Model name for the chosen provider
	BaseURL  string `json:"base_url,omitempty"` // OpenAI-compatible endpoint, e.g. Ollama
	APIKey   string `json:"api_key,omitempty"`  // LLM API key

	// Search
	GoogleAPIKey   string `json:"google_api_key,omitempty"`
	SearchEngineID string `json:"search_engine_id,omitempty"`

	DatabaseURL string `json:"database_url,omitempty"`

	// Retry loop
	MaxAttempts         int     `json:"max_attempts,omitempty"`
	AcceptanceThreshold float64 `json:"acceptance_threshold,omitempty"`
	RetryDelay          string  `json:"retry_delay,omitempty"` // Go duration, e.g. "2s"

	// Server
	Port           int     `json:"port,omitempty"`
	RateLimitRPS   float64 `json:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `json:"rate_limit_burst,omitempty"`

	Verbose bool `json:"verbose,omitempty"`
}

// Environment variable names.
const (
	EnvProvider       = "LLM_PROVIDER"
	EnvModel          = "LLM_MODEL"
	EnvBaseURL        = "LLM_BASE_URL"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvGoogleAPIKey   = "GOOGLE_API_KEY"
	EnvSearchEngineID = "GOOGLE_CSE_ID"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvPort           = "PORT"
	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Provider:            string(llm.ProviderGemini),
		MaxAttempts:         5,
		AcceptanceThreshold: 10.0,
		RetryDelay:          "2s",
		Port:                8080,
		RateLimitRPS:        1,
		RateLimitBurst:      5,
	}
}

// LoadConfig loads configuration from a JSON file. The file is checked against
// the embedded config schema before it is decoded.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := schemas.ValidateConfig(data); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Provider != "" {
		if _, err := llm.ParseProvider(c.Provider); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	if c.MaxAttempts < 0 || c.MaxAttempts > generation.DefaultMaxAttempts {
		return fmt.Errorf("config error: 'max_attempts' must be between 1 and %d", generation.DefaultMaxAttempts)
	}
	if c.AcceptanceThreshold < 0 || c.AcceptanceThreshold > 100 {
		return fmt.Errorf("config error: 'acceptance_threshold' must be between 0 and 100")
	}
	if _, err := c.RetryDelayDuration(); err != nil {
		return err
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("config error: rate limits must be non-negative")
	}

	return nil
}

// RetryDelayDuration parses RetryDelay. An empty value is zero.
func (c *Config) RetryDelayDuration() (time.Duration, error) {
	if c.RetryDelay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("config error: invalid 'retry_delay' %q: %w", c.RetryDelay, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config error: 'retry_delay' must be non-negative")
	}
	return d, nil
}

// ApplyEnv fills empty fields from environment variables read through getenv.
// The LLM key is taken from the variable matching the provider.
func (c *Config) ApplyEnv(getenv func(string) string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}

	fill(&c.Provider, EnvProvider)
	fill(&c.Model, EnvModel)
	fill(&c.BaseURL, EnvBaseURL)
	fill(&c.GoogleAPIKey, EnvGoogleAPIKey)
	fill(&c.SearchEngineID, EnvSearchEngineID)
	fill(&c.DatabaseURL, EnvDatabaseURL)

	if p, _ := llm.ParseProvider(c.Provider); p == llm.ProviderOpenAI {
		fill(&c.APIKey, EnvOpenAIAPIKey)
	} else {
		fill(&c.APIKey, EnvGeminiAPIKey)
	}

	if c.Port == 0 {
		if v, err := strconv.Atoi(getenv(EnvPort)); err == nil {
			c.Port = v
		}
	}
	if c.RateLimitRPS == 0 {
		if v, err := strconv.ParseFloat(getenv(EnvRateLimitRPS), 64); err == nil {
			c.RateLimitRPS = v
		}
	}
	if c.RateLimitBurst == 0 {
		if v, err := strconv.Atoi(getenv(EnvRateLimitBurst)); err == nil {
			c.RateLimitBurst = v
		}
	}
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.GoogleAPIKey == "" {
		result.GoogleAPIKey = defaults.GoogleAPIKey
	}
	if result.SearchEngineID == "" {
		result.SearchEngineID = defaults.SearchEngineID
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RetryDelay == "" {
		result.RetryDelay = defaults.RetryDelay
	}

	// Numeric fields: use default if zero
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.AcceptanceThreshold == 0 {
		result.AcceptanceThreshold = defaults.AcceptanceThreshold
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RateLimitRPS == 0 {
		result.RateLimitRPS = defaults.RateLimitRPS
	}
	if result.RateLimitBurst == 0 {
		result.RateLimitBurst = defaults.RateLimitBurst
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// LLMConfig returns the client configuration for the selected provider.
// With no provider set, a BaseURL selects the OpenAI-compatible provider.
// Model overrides every tier.
func (c *Config) LLMConfig() *llm.Config {
	provider, err := llm.ParseProvider(c.Provider)
	if err != nil {
		provider = llm.ProviderGemini
		if c.BaseURL != "" {
			provider = llm.ProviderOpenAI
		}
	}

	cfg := llm.ConfigFor(provider)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Model != "" {
		cfg = cfg.WithModelOverride(c.Model)
	}
	return cfg
}

// SearchConfig returns the Custom Search client configuration.
func (c *Config) SearchConfig() search.Config {
	return search.Config{
		APIKey:         c.GoogleAPIKey,
		SearchEngineID: c.SearchEngineID,
	}
}
