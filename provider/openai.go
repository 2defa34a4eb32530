package provider

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"skycast/config"
	"skycast/mcp"
	"skycast/model"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go SDK.
// Any chat completions compatible endpoint can be used through baseURL.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//   - model: Initial model to use (default: "gpt-4o-mini")
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(baseURL, apiKey, modelName string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// Stream implements model.Provider.
//
// Tool call deltas only carry the call id and name on their first fragment;
// later fragments are matched to it through the delta index.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
	return model.SingleUse(func(yield func(model.StreamChunk, error) bool) {
		modelName := p.model
		if opts.Model != "" {
			modelName = opts.Model
		}

		params := openai.ChatCompletionNewParams{
			Messages:  ConvertToOpenAIMessages(messages),
			Model:     openai.ChatModel(modelName),
			MaxTokens: openai.Int(int64(maxTokensOrDefault(opts.MaxOutputTokens))),
		}
		if len(tools) > 0 {
			params.Tools = mcp.ConvertFunctionSpecsToOpenAI(tools)
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		// tool call index -> call id
		callIDs := make(map[int64]string)
		started := false
		finished := false

		for stream.Next() {
			started = true
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !yield(model.TextDelta(choice.Delta.Content), nil) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				id, known := callIDs[tc.Index]
				if !known {
					id = tc.ID
					if id == "" {
						id = "call_" + uuid.NewString()
					}
					callIDs[tc.Index] = id
				}
				if !yield(model.ToolCallFragment(id, tc.Function.Name, tc.Function.Arguments), nil) {
					return
				}
			}

			if choice.FinishReason != "" {
				finished = true
			}
		}

		if err := stream.Err(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Provider] OpenAI stream error: %v", err)
			}
			yield(model.StreamChunk{}, interrupted(fmt.Errorf("OpenAI streaming error: %w", err), started))
			return
		}
		if !finished {
			yield(model.StreamChunk{}, &model.StreamInterruptedError{Err: io.ErrUnexpectedEOF})
			return
		}
		yield(model.TurnComplete(), nil)
	})
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:     m.ID,
			Provider: string(ProviderTypeOpenAI),
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(modelName string) {
	p.model = modelName
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}

// ConvertToOpenAIMessages converts conversation messages to OpenAI chat
// messages. A run of tool messages becomes one assistant message listing the
// calls followed by a tool message per result.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for i := 0; i < len(messages); {
		msg := messages[i]

		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case model.RoleAssistant:
			if msg.Content != "" {
				result = append(result, openai.AssistantMessage(msg.Content))
			}

		case model.RoleTool:
			calls, results, next := toolRun(messages, i)
			toolCalls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
			for _, call := range calls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: encodeArguments(call.Arguments),
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls},
			})
			for j, r := range results {
				result = append(result, openai.ToolMessage(r.Content, calls[j].ID))
			}
			i = next
			continue

		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
		i++
	}

	return result
}
