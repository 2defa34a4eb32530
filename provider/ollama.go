package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"skycast/config"
	"skycast/mcp"
	"skycast/model"
	"skycast/ollama"
)

var errStopped = errors.New("consumer stopped")

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// Ollama delivers each tool call whole rather than in fragments and does not
// assign call ids, so every call gets a generated id and a single fragment
// holding its complete JSON arguments.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL. Defaults to "http://localhost:11434".
//   - model: The model name to use. Defaults to "llama3.1:latest".
//
// Returns an error if the baseURL is invalid.
//
// Example:
//
//	provider, err := NewOllamaProvider("http://localhost:11434", "llama3.1")
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewOllamaProvider(baseURL, modelName string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{
		client: client,
	}, nil
}

// Stream implements model.Provider.
func (p *OllamaProvider) Stream(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
	return model.SingleUse(func(yield func(model.StreamChunk, error) bool) {
		if opts.Model != "" && opts.Model != p.client.GetModel() {
			p.client.SetModel(opts.Model)
		}

		var ollamaTools []api.Tool
		if len(tools) > 0 {
			if !p.client.SupportsToolCalling() && config.DebugLog != nil {
				config.DebugLog.Printf("[Provider] Ollama model %s is not known to support tools", p.client.GetModel())
			}
			ollamaTools = mcp.ConvertFunctionSpecsToOllama(tools)
		}

		started := false
		done := false

		req := ollama.ChatRequest{
			Messages:  ConvertToOllamaMessages(messages),
			Tools:     ollamaTools,
			MaxTokens: opts.MaxOutputTokens,
		}
		err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			started = true
			if resp.Message.Content != "" {
				if !yield(model.TextDelta(resp.Message.Content), nil) {
					return errStopped
				}
			}
			for _, tc := range resp.Message.ToolCalls {
				args, err := json.Marshal(tc.Function.Arguments)
				if err != nil {
					return &model.ProtocolError{Reason: fmt.Sprintf("tool call %q arguments", tc.Function.Name), Err: err}
				}
				if !yield(model.ToolCallFragment(uuid.NewString(), tc.Function.Name, string(args)), nil) {
					return errStopped
				}
			}
			if resp.Done {
				done = true
			}
			return nil
		})

		switch {
		case errors.Is(err, errStopped):
			return
		case err != nil:
			var perr *model.ProtocolError
			if errors.As(err, &perr) {
				yield(model.StreamChunk{}, perr)
				return
			}
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Provider] Ollama stream error: %v", err)
			}
			yield(model.StreamChunk{}, interrupted(fmt.Errorf("Ollama streaming error: %w", err), started))
		case !done:
			yield(model.StreamChunk{}, &model.StreamInterruptedError{Err: io.ErrUnexpectedEOF})
		default:
			yield(model.TurnComplete(), nil)
		}
	})
}

// ListModels implements Provider.ListModels.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// SetModel implements Provider.SetModel.
func (p *OllamaProvider) SetModel(modelName string) {
	p.client.SetModel(modelName)
}

// Ping implements Provider.Ping.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
