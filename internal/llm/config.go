// Package llm wraps the generative text providers and parses their replies.
package llm

import "strings"

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierLite is for translation and short extraction calls
	TierLite ModelTier = "lite"
	// TierStandard is for keyword generation and ranking analysis
	TierStandard ModelTier = "standard"
	// TierAdvanced is for strategy reports and probability synthesis
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Supported providers.
const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	MaxTokens   int64
}

// DefaultConfig returns the default configuration (Gemini)
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
		Temperature: 0.7,
		MaxTokens:   8192,
	}
}

// DefaultAnthropicConfig returns the default Claude configuration
func DefaultAnthropicConfig() *Config {
	return &Config{
		Provider: ProviderAnthropic,
		Models: map[ModelTier]string{
			TierLite:     "claude-haiku-4-5-20251001",
			TierStandard: "claude-sonnet-4-5-20250929",
			TierAdvanced: "claude-sonnet-4-5-20250929",
		},
		Temperature: 0.7,
		MaxTokens:   8192,
	}
}

// ConfigFor returns the provider defaults with per-tier model overrides applied.
// Unknown providers fall back to Gemini.
func ConfigFor(provider string, overrides map[string]string) *Config {
	var cfg *Config
	switch Provider(strings.ToLower(provider)) {
	case ProviderAnthropic:
		cfg = DefaultAnthropicConfig()
	default:
		cfg = DefaultGeminiConfig()
	}
	for tier, model := range overrides {
		if model != "" {
			cfg = cfg.WithModel(ModelTier(strings.ToLower(tier)), model)
		}
	}
	return cfg
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}
