package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"skycast/config"
	"skycast/mcp"
	"skycast/model"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicModel   = anthropic.ModelClaude_3_Haiku_20240307
)

// AnthropicProvider implements model.Provider using Anthropic's official Go SDK.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//   - model: Initial model to use (default: "claude-3-haiku-20240307")
//
// Returns an error if the API key is missing.
func NewAnthropicProvider(baseURL, apiKey, modelName string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := DefaultAnthropicModel
	if modelName != "" {
		anthropicModel = anthropic.Model(modelName)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
	}, nil
}

// Stream implements model.Provider.
//
// Content blocks are keyed by their index in the event stream. A tool_use
// block start yields the first fragment of the call with its id and name;
// input_json_delta events yield the argument fragments for the same id.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
	return model.SingleUse(func(yield func(model.StreamChunk, error) bool) {
		anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

		params := anthropic.MessageNewParams{
			Model:     p.model,
			Messages:  anthropicMessages,
			MaxTokens: int64(maxTokensOrDefault(opts.MaxOutputTokens)),
		}
		if opts.Model != "" {
			params.Model = anthropic.Model(opts.Model)
		}
		if len(systemPrompt) > 0 {
			params.System = systemPrompt
		}
		if len(tools) > 0 {
			params.Tools = mcp.ConvertFunctionSpecsToAnthropic(tools)
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		// content block index -> tool_use id
		toolBlocks := make(map[int64]string)
		started := false

		for stream.Next() {
			started = true
			event := stream.Current()

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type != "tool_use" {
					continue
				}
				toolBlocks[ev.Index] = ev.ContentBlock.ID
				if !yield(model.ToolCallFragment(ev.ContentBlock.ID, ev.ContentBlock.Name, ""), nil) {
					return
				}

			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text == "" {
						continue
					}
					if !yield(model.TextDelta(delta.Text), nil) {
						return
					}
				case anthropic.InputJSONDelta:
					id, ok := toolBlocks[ev.Index]
					if !ok {
						yield(model.StreamChunk{}, &model.ProtocolError{Reason: fmt.Sprintf("input_json_delta for unknown content block %d", ev.Index)})
						return
					}
					if delta.PartialJSON == "" {
						continue
					}
					if !yield(model.ToolCallFragment(id, "", delta.PartialJSON), nil) {
						return
					}
				}

			case anthropic.MessageStopEvent:
				yield(model.TurnComplete(), nil)
				return
			}
		}

		if err := stream.Err(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Provider] Anthropic stream error: %v", err)
			}
			yield(model.StreamChunk{}, interrupted(fmt.Errorf("Anthropic streaming error: %w", err), started))
			return
		}

		// The event stream closed without message_stop.
		yield(model.StreamChunk{}, &model.StreamInterruptedError{Err: io.ErrUnexpectedEOF})
	})
}

// ListModels implements Provider.ListModels.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	// A curated list keeps this call free of an extra request.
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:     string(m),
			Provider: string(ProviderTypeAnthropic),
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(modelName string) {
	p.model = anthropic.Model(modelName)
}

// Ping implements Provider.Ping by attempting to create a minimal request.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})

	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// convertToAnthropicMessages converts conversation messages to Anthropic
// format and returns the system blocks separately.
//
// A run of tool messages becomes an assistant message with one tool_use block
// per call followed by a user message with the matching tool_result blocks.
// Empty assistant text is skipped since the API rejects empty text blocks.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for i := 0; i < len(messages); {
		msg := messages[i]

		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})

		case model.RoleAssistant:
			if msg.Content != "" {
				anthropicMsgs = append(anthropicMsgs,
					anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)),
				)
			}

		case model.RoleTool:
			calls, results, next := toolRun(messages, i)
			uses := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
			answers := make([]anthropic.ContentBlockParamUnion, 0, len(results))
			for j, call := range calls {
				uses = append(uses, anthropic.NewToolUseBlock(call.ID, json.RawMessage(encodeArguments(call.Arguments)), call.Name))
				answers = append(answers, anthropic.NewToolResultBlock(call.ID, results[j].Content, results[j].IsError))
			}
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(uses...),
				anthropic.NewUserMessage(answers...),
			)
			i = next
			continue

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
		i++
	}

	return anthropicMsgs, systemBlocks
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return config.DefaultMaxOutputTokens
	}
	return n
}
