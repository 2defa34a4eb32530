package testutil

import (
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"skycast/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{
			Role:      model.RoleUser,
			Content:   "Hello, how are you?",
			Timestamp: time.Now(),
		},
		{
			Role:      model.RoleAssistant,
			Content:   "I'm doing well, thank you!",
			Timestamp: time.Now(),
		},
		{
			Role:      model.RoleUser,
			Content:   "What is the weather in Oslo?",
			Timestamp: time.Now(),
		},
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{
			Role:      model.RoleUser,
			Content:   content,
			Timestamp: time.Now(),
		},
	}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	return model.Message{
		Role:      model.RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// GeocodeCall is a tool call for the place lookup tool.
func GeocodeCall(id, place string) model.ToolCall {
	return model.ToolCall{
		ID:        id,
		Name:      "NominatimLookupLatLongForPlace",
		Arguments: map[string]any{"place": place},
	}
}

// CurrentWeatherCall is a tool call for the current weather tool.
func CurrentWeatherCall(id string, lat, lon float64) model.ToolCall {
	return model.ToolCall{
		ID:        id,
		Name:      "YrWeatherCurrentWeather",
		Arguments: map[string]any{"latitude": lat, "longitude": lon},
	}
}

// WeatherTools returns the weather server catalog as descriptors.
func WeatherTools() []model.ToolDescriptor {
	coords := []model.ParamSpec{
		{Name: "latitude", Type: "number", Description: "Latitude of the location", Required: true},
		{Name: "longitude", Type: "number", Description: "Longitude of the location", Required: true},
	}
	return []model.ToolDescriptor{
		{
			Name:        "NominatimLookupLatLongForPlace",
			Description: "Look up the latitude and longitude of a place",
			Parameters: []model.ParamSpec{
				{Name: "place", Type: "string", Description: "Name of the place", Required: true},
			},
		},
		{
			Name:        "YrWeatherCurrentWeather",
			Description: "Current weather for a coordinate",
			Parameters:  coords,
		},
		{
			Name:        "YrWeatherTenDayForecast",
			Description: "Ten day forecast for a coordinate",
			Parameters:  coords,
		},
	}
}

// WeatherFunctionSpecs returns WeatherTools as offered to a model.
func WeatherFunctionSpecs() []model.FunctionSpec {
	tools := WeatherTools()
	specs := make([]model.FunctionSpec, 0, len(tools))
	for _, t := range tools {
		spec := model.FunctionSpec{Name: t.Name, Description: t.Description}
		for _, p := range t.Parameters {
			spec.Parameters = append(spec.Parameters, model.FunctionParam{
				Name:        p.Name,
				Type:        model.PrimitiveType(p.Type),
				Description: p.Description,
				Required:    p.Required,
			})
		}
		specs = append(specs, spec)
	}
	return specs
}

// TestMCPTools returns sample MCP tools for testing
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "NominatimLookupLatLongForPlace",
			Description: "Look up the latitude and longitude of a place",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"place": map[string]any{
						"type":        "string",
						"description": "Name of the place",
					},
				},
				Required: []string{"place"},
			},
		},
		{
			Name:        "YrWeatherCurrentWeather",
			Description: "Current weather for a coordinate",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"longitude": map[string]any{
						"type":        "number",
						"description": "Longitude of the location",
					},
					"latitude": map[string]any{
						"type":        "number",
						"description": "Latitude of the location",
					},
				},
				Required: []string{"latitude", "longitude"},
			},
		},
	}
}
