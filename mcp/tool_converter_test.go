package mcp

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"skycast/model"
)

func weatherTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "YrWeatherCurrentWeather",
		Description: "Current weather for a coordinate",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"longitude": map[string]any{"type": "number", "description": "Longitude"},
				"location":  map[string]any{"type": "string", "description": "Place name"},
				"latitude":  map[string]any{"type": "number", "description": "Latitude"},
			},
			Required: []string{"location", "latitude", "longitude"},
		},
	}
}

func TestDescribeTools(t *testing.T) {
	got, err := DescribeTools([]mcptypes.Tool{weatherTool()})
	if err != nil {
		t.Fatalf("DescribeTools: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}

	want := []model.ParamSpec{
		{Name: "latitude", Type: "number", Description: "Latitude", Required: true},
		{Name: "location", Type: "string", Description: "Place name", Required: true},
		{Name: "longitude", Type: "number", Description: "Longitude", Required: true},
	}
	if !reflect.DeepEqual(got[0].Parameters, want) {
		t.Errorf("parameters:\n got %+v\nwant %+v", got[0].Parameters, want)
	}
	if got[0].Description != "Current weather for a coordinate" {
		t.Errorf("description changed: %q", got[0].Description)
	}
}

func TestDescribeToolsRawSchema(t *testing.T) {
	tool := mcptypes.NewToolWithRawSchema("echo", "Echo text",
		json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`))

	got, err := DescribeTools([]mcptypes.Tool{tool})
	if err != nil {
		t.Fatalf("DescribeTools: %v", err)
	}
	want := []model.ParamSpec{{Name: "text", Type: "string", Required: true}}
	if !reflect.DeepEqual(got[0].Parameters, want) {
		t.Errorf("got %+v, want %+v", got[0].Parameters, want)
	}
}

func TestDescribeToolsRejectsMalformedCatalog(t *testing.T) {
	tests := []struct {
		name  string
		tools []mcptypes.Tool
	}{
		{"missing name", []mcptypes.Tool{{InputSchema: mcptypes.ToolInputSchema{Type: "object"}}}},
		{"duplicate name", []mcptypes.Tool{weatherTool(), weatherTool()}},
		{"array schema", []mcptypes.Tool{{Name: "list", InputSchema: mcptypes.ToolInputSchema{Type: "array"}}}},
		{"property not an object", []mcptypes.Tool{{
			Name:        "odd",
			InputSchema: mcptypes.ToolInputSchema{Type: "object", Properties: map[string]any{"x": "string"}},
		}}},
		{"unparseable raw schema", []mcptypes.Tool{mcptypes.NewToolWithRawSchema("bad", "", json.RawMessage(`{"type":`))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DescribeTools(tt.tools)
			if !errors.Is(err, model.ErrProtocol) {
				t.Errorf("expected a protocol error, got %v", err)
			}
		})
	}
}

func TestPropertyType(t *testing.T) {
	tests := []struct {
		prop map[string]any
		want string
	}{
		{map[string]any{"type": "integer"}, "integer"},
		{map[string]any{"type": []any{"string", "null"}}, "string|null"},
		{map[string]any{"anyOf": []any{}}, "anyOf"},
		{map[string]any{"$ref": "#/defs/x"}, "$ref"},
		{map[string]any{}, ""},
	}
	for _, tt := range tests {
		if got := propertyType(tt.prop); got != tt.want {
			t.Errorf("propertyType(%v) = %q, want %q", tt.prop, got, tt.want)
		}
	}
}

func TestAdaptCatalog(t *testing.T) {
	tools, err := DescribeTools([]mcptypes.Tool{weatherTool()})
	if err != nil {
		t.Fatal(err)
	}

	specs, err := AdaptCatalog(tools)
	if err != nil {
		t.Fatalf("AdaptCatalog: %v", err)
	}
	spec := specs[0]
	if spec.Name != "YrWeatherCurrentWeather" || spec.Description != "Current weather for a coordinate" {
		t.Errorf("name or description changed: %+v", spec)
	}
	var names []string
	for _, p := range spec.Parameters {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"latitude", "location", "longitude"}) {
		t.Errorf("parameter order: %v", names)
	}
	if spec.Parameters[0].Type != model.TypeNumber || spec.Parameters[1].Type != model.TypeString {
		t.Errorf("types not mapped: %+v", spec.Parameters)
	}

	again, err := AdaptCatalog(tools)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(specs, again) {
		t.Error("adapting the same catalog twice gave different results")
	}
}

func TestAdaptCatalogRejectsNonPrimitive(t *testing.T) {
	for _, typ := range []string{"object", "array", "string|null", "anyOf", ""} {
		tools := []model.ToolDescriptor{
			{Name: "ok", Parameters: []model.ParamSpec{{Name: "a", Type: "string"}}},
			{Name: "nested", Parameters: []model.ParamSpec{{Name: "filter", Type: typ}}},
		}
		specs, err := AdaptCatalog(tools)
		if specs != nil {
			t.Errorf("type %q: expected no specs, got %d", typ, len(specs))
		}
		var se *model.SchemaError
		if !errors.As(err, &se) {
			t.Fatalf("type %q: expected *SchemaError, got %v", typ, err)
		}
		if se.Tool != "nested" || se.Param != "filter" {
			t.Errorf("type %q: wrong location %+v", typ, se)
		}
	}
}

func TestConvertFunctionSpecs(t *testing.T) {
	tools, _ := DescribeTools([]mcptypes.Tool{weatherTool()})
	specs, err := AdaptCatalog(tools)
	if err != nil {
		t.Fatal(err)
	}

	ollama := ConvertFunctionSpecsToOllama(specs)
	if len(ollama) != 1 || ollama[0].Type != "function" {
		t.Fatalf("ollama: %+v", ollama)
	}
	if got := ollama[0].Function.Parameters.Required; !reflect.DeepEqual(got, []string{"latitude", "location", "longitude"}) {
		t.Errorf("ollama required: %v", got)
	}
	if _, ok := ollama[0].Function.Parameters.Properties["latitude"]; !ok {
		t.Error("ollama: latitude property missing")
	}

	openaiTools := ConvertFunctionSpecsToOpenAI(specs)
	if len(openaiTools) != 1 || openaiTools[0].OfFunction == nil {
		t.Fatalf("openai: %+v", openaiTools)
	}
	if openaiTools[0].OfFunction.Function.Name != "YrWeatherCurrentWeather" {
		t.Errorf("openai name: %q", openaiTools[0].OfFunction.Function.Name)
	}

	anthropicTools := ConvertFunctionSpecsToAnthropic(specs)
	if len(anthropicTools) != 1 || anthropicTools[0].OfTool == nil {
		t.Fatalf("anthropic: %+v", anthropicTools)
	}
	if got := anthropicTools[0].OfTool.InputSchema.Required; len(got) != 3 {
		t.Errorf("anthropic required: %v", got)
	}

	if ConvertFunctionSpecsToOpenAI(nil) != nil || ConvertFunctionSpecsToAnthropic(nil) != nil {
		t.Error("empty catalog should convert to nil")
	}
}
