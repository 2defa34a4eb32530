// Package provider adapts streaming completion endpoints to model.Provider.
//
// Every endpoint (Anthropic messages, OpenAI chat completions and Ollama chat)
// is exposed the same way: Stream returns a lazy, single-use sequence of
// model.StreamChunk values made of text deltas, tool call fragments keyed by
// call id, and exactly one trailing turn-complete marker. Nothing is sent
// until the sequence is ranged over.
//
// # Tool messages
//
// The conversation stores each tool result as a model.Message carrying the
// call it answers. Endpoints that require an assistant tool-use message in
// front of tool results get one rebuilt from each run of consecutive tool
// messages, see toolRun in conversions.go.
//
// # Errors
//
// Failures before the first event (bad key, unreachable host) are yielded
// as-is. A failure after the endpoint accepted the request is yielded as a
// *model.StreamInterruptedError so the orchestrator can fail the turn without
// treating the catalog or the conversation as broken.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeAnthropic,
//	    Model:  "claude-3-haiku-20240307",
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	})
//	if err != nil {
//	    // handle error
//	}
//	for chunk, err := range p.Stream(ctx, messages, specs, model.StreamOptions{MaxOutputTokens: 1000}) {
//	    ...
//	}
package provider

// The Provider interface lives in the model package (model/provider.go) so the
// orchestrator can use it without importing this package.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama    ProviderType = "ollama"
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // For OpenAI/Anthropic (unused for Ollama)
}
