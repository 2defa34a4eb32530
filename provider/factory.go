package provider

import (
	"fmt"

	"skycast/model"
)

// NewProvider creates a provider based on configuration.
//
// Supported provider types:
//   - ProviderTypeAnthropic: Anthropic messages API (default endpoint)
//   - ProviderTypeOpenAI: OpenAI chat completions, or any compatible BaseURL
//   - ProviderTypeOllama: Local Ollama server
//
// Returns an error if the type is unknown or the constructor rejects the
// configuration (missing API key, invalid URL).
func NewProvider(cfg Config) (model.Provider, error) {
	var (
		p   model.Provider
		err error
	)
	// Each constructor is assigned through a typed variable so a failed
	// constructor yields a nil interface rather than a typed nil.
	switch cfg.Type {
	case ProviderTypeOllama:
		var op *OllamaProvider
		if op, err = NewOllamaProvider(cfg.BaseURL, cfg.Model); err == nil {
			p = op
		}
	case ProviderTypeOpenAI:
		var op *OpenAIProvider
		if op, err = NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model); err == nil {
			p = op
		}
	case ProviderTypeAnthropic:
		var ap *AnthropicProvider
		if ap, err = NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model); err == nil {
			p = ap
		}
	default:
		err = fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MapProviderIDToType converts a config provider ID to a ProviderType.
//
// Mappings:
//   - "" and "anthropic" → ProviderTypeAnthropic
//   - "openai" → ProviderTypeOpenAI
//   - "ollama" → ProviderTypeOllama
//
// For unknown IDs, returns the ID cast as ProviderType (factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "", "anthropic":
		return ProviderTypeAnthropic
	case "openai":
		return ProviderTypeOpenAI
	case "ollama":
		return ProviderTypeOllama
	default:
		return ProviderType(id)
	}
}
