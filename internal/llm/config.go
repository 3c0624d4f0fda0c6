// Package llm provides centralized LLM configuration and client abstractions.
// Content generation talks to Gemini by default, or to any OpenAI-compatible
// chat completions endpoint such as a local Ollama server.
package llm

import (
	"fmt"
	"strings"
	"time"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for cheap, short outputs such as social media posts
	TierLite ModelTier = "lite"
	// TierStandard is the default tier for content generation
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form articles
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is any OpenAI-compatible chat completions API (OpenAI, Ollama, vLLM)
	ProviderOpenAI Provider = "openai"
)

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 60 * time.Second

// DefaultTemperature leaves room for retries to produce different text.
const DefaultTemperature = 0.7

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	BaseURL     string // OpenAI-compatible endpoint, e.g. http://localhost:11434/v1
	Temperature float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
	}
}

// DefaultOllamaConfig returns a configuration for a local Ollama server serving
// gemma:2b through its OpenAI-compatible API.
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierStandard: "gemma:2b",
		},
		BaseURL:     "http://localhost:11434/v1",
		Temperature: DefaultTemperature,
	}
}

// ConfigFor returns the default configuration for a provider.
// Unknown providers fall back to Gemini.
func ConfigFor(provider Provider) *Config {
	if provider == ProviderOpenAI {
		return DefaultOllamaConfig()
	}
	return DefaultGeminiConfig()
}

// ParseProvider reads a provider name, ignoring case and surrounding space.
// "ollama" and "openai-compatible" name the OpenAI-compatible provider.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini", "google":
		return ProviderGemini, nil
	case "openai", "ollama", "openai-compatible":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown LLM provider %q", name)
	}
}

// GetModel returns the model for tier, falling back to the standard model and
// then the lite one. Empty when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model := c.Models[t]; model != "" {
			return model
		}
	}
	return ""
}

// WithModelOverride returns a copy of the config that uses model for every tier.
func (c *Config) WithModelOverride(model string) *Config {
	out := *c
	out.Models = map[ModelTier]string{
		TierLite:     model,
		TierStandard: model,
		TierAdvanced: model,
	}
	return &out
}

// Validate reports a config that cannot produce a client.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported LLM provider %q", c.Provider)
	}
	if c.GetModel(TierStandard) == "" {
		return fmt.Errorf("no model configured for provider %s", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature)
	}
	return nil
}
