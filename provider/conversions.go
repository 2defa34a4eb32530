package provider

import (
	"encoding/json"

	"github.com/ollama/ollama/api"

	"skycast/model"
)

// toolRun collects the consecutive tool messages starting at messages[i].
// calls holds the answered call of each message in order, so a converter can
// emit the assistant tool-use message the results reply to. next is the
// index of the first message after the run.
func toolRun(messages []model.Message, i int) (calls []model.ToolCall, results []model.Message, next int) {
	for next = i; next < len(messages) && messages[next].Role == model.RoleTool; next++ {
		call, _ := messages[next].AnsweredCall()
		calls = append(calls, call)
		results = append(results, messages[next])
	}
	return calls, results, next
}

// encodeArguments renders call arguments as a JSON object. Nil arguments
// encode as "{}".
func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// interrupted wraps err as a *model.StreamInterruptedError once the endpoint
// has produced at least one event.
func interrupted(err error, started bool) error {
	if err == nil || !started {
		return err
	}
	return &model.StreamInterruptedError{Err: err}
}

// ConvertToOllamaMessages converts conversation messages to Ollama's format.
// Each run of tool messages becomes an assistant message carrying the calls
// followed by one "tool" message per result.
//
// Example:
//
//	msgs := []model.Message{
//	    {Role: model.RoleUser, Content: "Weather in Oslo?"},
//	    model.NewToolMessage(call, "Current weather : ..."),
//	}
//	ConvertToOllamaMessages(msgs)
//	// user, assistant{ToolCalls: [call]}, tool{ToolName: call.Name}
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))
	for i := 0; i < len(messages); {
		msg := messages[i]
		if msg.Role == model.RoleTool {
			calls, results, next := toolRun(messages, i)
			result = append(result, api.Message{
				Role:      string(model.RoleAssistant),
				ToolCalls: ConvertFromProviderToolCalls(calls),
			})
			for j, r := range results {
				result = append(result, api.Message{
					Role:     string(model.RoleTool),
					Content:  r.Content,
					ToolName: calls[j].Name,
				})
			}
			i = next
			continue
		}

		result = append(result, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
		i++
	}
	return result
}

// ConvertFromProviderToolCalls converts model.ToolCall values to Ollama
// api.ToolCall values. Returns nil for an empty input.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Index:     i,
				Name:      call.Name,
				Arguments: args,
			},
		}
	}
	return result
}
