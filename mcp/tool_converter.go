package mcp

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"skycast/model"
)

// DescribeTools converts the tools/list result into descriptors. Parameters
// are sorted by name. A tool without a name, a duplicate name, a non-object
// input schema or a property that is not a schema object is a
// *model.ProtocolError.
func DescribeTools(mcpTools []mcptypes.Tool) ([]model.ToolDescriptor, error) {
	out := make([]model.ToolDescriptor, 0, len(mcpTools))
	seen := make(map[string]struct{}, len(mcpTools))

	for i, tool := range mcpTools {
		if tool.Name == "" {
			return nil, &model.ProtocolError{Reason: fmt.Sprintf("tool %d has no name", i)}
		}
		if _, dup := seen[tool.Name]; dup {
			return nil, &model.ProtocolError{Reason: fmt.Sprintf("duplicate tool name %q", tool.Name)}
		}
		seen[tool.Name] = struct{}{}

		schema, err := inputSchemaOf(tool)
		if err != nil {
			return nil, &model.ProtocolError{Reason: fmt.Sprintf("tool %q input schema", tool.Name), Err: err}
		}
		if schema.Type != "" && schema.Type != "object" {
			return nil, &model.ProtocolError{Reason: fmt.Sprintf("tool %q input schema has type %q", tool.Name, schema.Type)}
		}

		required := make(map[string]bool, len(schema.Required))
		for _, r := range schema.Required {
			required[r] = true
		}

		params := make([]model.ParamSpec, 0, len(schema.Properties))
		for name, raw := range schema.Properties {
			prop, ok := raw.(map[string]any)
			if !ok {
				return nil, &model.ProtocolError{Reason: fmt.Sprintf("tool %q property %q is not a schema object", tool.Name, name)}
			}
			desc, _ := prop["description"].(string)
			params = append(params, model.ParamSpec{
				Name:        name,
				Type:        propertyType(prop),
				Description: desc,
				Required:    required[name],
			})
		}
		sort.Slice(params, func(a, b int) bool { return params[a].Name < params[b].Name })

		out = append(out, model.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}

	return out, nil
}

func inputSchemaOf(tool mcptypes.Tool) (mcptypes.ToolInputSchema, error) {
	if len(tool.RawInputSchema) == 0 {
		return tool.InputSchema, nil
	}
	var schema mcptypes.ToolInputSchema
	if err := json.Unmarshal(tool.RawInputSchema, &schema); err != nil {
		return schema, err
	}
	return schema, nil
}

// propertyType flattens the "type" keyword. Unions are joined with "|" and
// compositions without a type report the keyword used, so the adapter can
// reject them by name.
func propertyType(prop map[string]any) string {
	switch t := prop["type"].(type) {
	case string:
		return t
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		return strings.Join(types, "|")
	case []string:
		return strings.Join(t, "|")
	}
	for _, kw := range []string{"anyOf", "oneOf", "allOf", "$ref"} {
		if _, ok := prop[kw]; ok {
			return kw
		}
	}
	return ""
}

var primitiveTypes = map[string]model.PrimitiveType{
	"string":  model.TypeString,
	"number":  model.TypeNumber,
	"integer": model.TypeInteger,
	"boolean": model.TypeBoolean,
}

// AdaptCatalog maps descriptors to the function specs offered to the model.
// Names and descriptions are kept verbatim. A parameter whose type is not a
// primitive fails the whole catalog with a *model.SchemaError.
func AdaptCatalog(tools []model.ToolDescriptor) ([]model.FunctionSpec, error) {
	out := make([]model.FunctionSpec, 0, len(tools))
	for _, tool := range tools {
		params := slices.Clone(tool.Parameters)
		sort.SliceStable(params, func(a, b int) bool { return params[a].Name < params[b].Name })

		spec := model.FunctionSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  make([]model.FunctionParam, 0, len(params)),
		}
		for _, p := range params {
			prim, ok := primitiveTypes[p.Type]
			if !ok {
				return nil, &model.SchemaError{Tool: tool.Name, Param: p.Name, Type: p.Type}
			}
			spec.Parameters = append(spec.Parameters, model.FunctionParam{
				Name:        p.Name,
				Type:        prim,
				Description: p.Description,
				Required:    p.Required,
			})
		}
		out = append(out, spec)
	}
	return out, nil
}

// ConvertFunctionSpecsToOllama converts function specs to Ollama API tool format
func ConvertFunctionSpecsToOllama(specs []model.FunctionSpec) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(specs))

	for _, spec := range specs {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Required:   spec.RequiredNames(),
			Properties: make(map[string]api.ToolProperty, len(spec.Parameters)),
		}
		for _, p := range spec.Parameters {
			params.Properties[p.Name] = api.ToolProperty{
				Type:        api.PropertyType{string(p.Type)},
				Description: p.Description,
			}
		}

		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}

	return ollamaTools
}

// ConvertFunctionSpecsToOpenAI converts function specs to the OpenAI chat
// completions tool format:
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "NominatimLookupLatLongForPlace",
//	    "description": "...",
//	    "parameters": {"type": "object", "properties": {...}, "required": [...]}
//	  }
//	}
func ConvertFunctionSpecsToOpenAI(specs []model.FunctionSpec) []openai.ChatCompletionToolUnionParam {
	if len(specs) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(specs))

	for i, spec := range specs {
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": spec.JSONSchema(),
		}
		if required := spec.RequiredNames(); len(required) > 0 {
			params["required"] = required
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  params,
			},
		)
	}

	return result
}

// ConvertFunctionSpecsToAnthropic converts function specs to Anthropic
// ToolUnionParam values with an input_schema.
func ConvertFunctionSpecsToAnthropic(specs []model.FunctionSpec) []anthropic.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(specs))

	for i, spec := range specs {
		// Type defaults to "object" when omitted
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: spec.JSONSchema(),
		}
		if required := spec.RequiredNames(); len(required) > 0 {
			inputSchema.Required = required
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)

		if spec.Description != "" {
			result[i].OfTool.Description = anthropic.String(spec.Description)
		}
	}

	return result
}
