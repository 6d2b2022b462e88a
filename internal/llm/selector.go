package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/botdesk/botdesk/internal/config"
)

// Selector resolves a named provider and fills unset generation parameters
// from process-level defaults.
type Selector struct {
	providers map[string]Provider
	defaults  config.LLMConfig
}

// NewSelector builds the provider set from config. Providers without
// credentials are still registered; they fail with an auth error on use,
// which surfaces the misconfiguration at the right place.
func NewSelector(cfg config.LLMConfig) *Selector {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	providers := map[string]Provider{
		openAIName:    NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, timeout),
		anthropicName: NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, timeout),
		ollamaName:    NewOllamaProvider(cfg.Ollama.BaseURL, timeout),
	}
	return &Selector{providers: providers, defaults: cfg}
}

// NewSelectorWithProviders wires explicit providers (used by tests).
func NewSelectorWithProviders(cfg config.LLMConfig, providers ...Provider) *Selector {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Selector{providers: m, defaults: cfg}
}

// Params are the resolved generation settings for one request.
type Params struct {
	Provider    Provider
	Model       string
	Temperature float64
	MaxTokens   int
}

// Resolve picks the provider and model for an agent's settings, falling back
// to process defaults for anything unset.
func (s *Selector) Resolve(providerName, model string, temperature *float64, maxTokens *int) (Params, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if providerName == "" {
		providerName = strings.ToLower(strings.TrimSpace(s.defaults.DefaultProvider))
	}
	provider, ok := s.providers[providerName]
	if !ok {
		return Params{}, fmt.Errorf("unknown llm provider %q", providerName)
	}
	params := Params{
		Provider:    provider,
		Model:       strings.TrimSpace(model),
		Temperature: s.defaults.DefaultTemperature,
		MaxTokens:   s.defaults.DefaultMaxTokens,
	}
	if params.Model == "" {
		params.Model = s.defaults.DefaultModel
	}
	if temperature != nil {
		params.Temperature = *temperature
	}
	if maxTokens != nil && *maxTokens > 0 {
		params.MaxTokens = *maxTokens
	}
	return params, nil
}
