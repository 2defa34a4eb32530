package server

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"skycast/config"
	"skycast/weather"
)

// Tool names as announced to clients.
const (
	ToolCurrentWeather = "YrWeatherCurrentWeather"
	ToolTenDayForecast = "YrWeatherTenDayForecast"
	ToolLookupPlace    = "NominatimLookupLatLongForPlace"
	ToolUSAlerts       = "UsWeatherAlerts"
	ToolUSForecast     = "UsWeatherForecastLocation"
)

const currentWeatherDescription = `Retrieves the current weather conditions for a specified location using the met.no (Yr) locationforecast API.

Usage Instructions:
1. Use the 'NominatimLookupLatLongForPlace' tool to resolve the latitude and longitude of the location.
2. Pass the resolved coordinates to this tool.
3. If coordinates cannot be resolved, use latitude = 0 and longitude = 0. The tool then reports that no results were found.
4. For places in the United States use 'UsWeatherForecastLocation' instead.
5. Use this tool when asked about the weather right now.

Response Requirements:
- Always include the latitude and longitude used.
- Always include the 'time' field from the result to indicate when the weather data is valid.
- Clearly state that the data was retrieved using 'YrWeatherCurrentWeather'.
- Do not show the data as JSON. Sum it up as a dashed list and append the raw JSON after it.
- If the 'time' value is more than two days away from today, say that current conditions could not be retrieved.`

const tenDayForecastDescription = `Retrieves the ten day forecast for a specified location using the met.no (Yr) locationforecast API.

Usage Instructions:
1. Use the 'NominatimLookupLatLongForPlace' tool to resolve the latitude and longitude of the location.
2. Pass the resolved coordinates to this tool.
3. If coordinates cannot be resolved, use latitude = 0 and longitude = 0. The tool then reports that no results were found.
4. For places in the United States use 'UsWeatherForecastLocation' instead.
5. Use this tool for forecasts. For the weather right now use 'YrWeatherCurrentWeather'.

Response Requirements:
- Always include the latitude and longitude used.
- Clearly state that the data was retrieved using 'YrWeatherTenDayForecast'.
- Start with a qualitative summary of 4-5 sentences covering temperature range, precipitation and wind, then give precise examples from the data.
- State the start and end time of the forecast. If asked about a later date, say data is only available until the end time.`

// Tools returns the tool definitions the weather server announces.
func Tools() []mcptypes.Tool {
	coords := func(name, desc string) []mcptypes.ToolOption {
		return []mcptypes.ToolOption{
			mcptypes.WithDescription(desc),
			mcptypes.WithString("location",
				mcptypes.Required(),
				mcptypes.Description("The location the coordinates belong to. Mention it, the latitude and the longitude in the answer."),
			),
			mcptypes.WithNumber("latitude", mcptypes.Required(), mcptypes.Description("Latitude of the location.")),
			mcptypes.WithNumber("longitude", mcptypes.Required(), mcptypes.Description("Longitude of the location.")),
		}
	}

	return []mcptypes.Tool{
		mcptypes.NewTool(ToolCurrentWeather, coords(ToolCurrentWeather, currentWeatherDescription)...),
		mcptypes.NewTool(ToolTenDayForecast, coords(ToolTenDayForecast, tenDayForecastDescription)...),
		mcptypes.NewTool(ToolLookupPlace,
			mcptypes.WithDescription("Get latitude and longitude for a place using the Nominatim service of OpenStreetMap."),
			mcptypes.WithString("place",
				mcptypes.Required(),
				mcptypes.Description("The place to get latitude and longitude for."),
			),
		),
		mcptypes.NewTool(ToolUSAlerts,
			mcptypes.WithDescription("Get weather alerts for a US state."),
			mcptypes.WithString("state",
				mcptypes.Required(),
				mcptypes.Description("The US state to get alerts for. Use the 2 letter abbreviation for the state (e.g. NY)."),
			),
		),
		mcptypes.NewTool(ToolUSForecast,
			mcptypes.WithDescription("Get the National Weather Service forecast for a location in the United States."),
			mcptypes.WithNumber("latitude", mcptypes.Required(), mcptypes.Description("Latitude of the location.")),
			mcptypes.WithNumber("longitude", mcptypes.Required(), mcptypes.Description("Longitude of the location.")),
		),
	}
}

// NewMCPServer builds the weather capability server on top of svc.
func NewMCPServer(cfg config.ServerConfig, svc *weather.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(cfg.Name, cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	h := &handlers{svc: svc}
	byName := map[string]mcpserver.ToolHandlerFunc{
		ToolCurrentWeather: h.currentWeather,
		ToolTenDayForecast: h.tenDayForecast,
		ToolLookupPlace:    h.lookupPlace,
		ToolUSAlerts:       h.alerts,
		ToolUSForecast:     h.forecast,
	}
	for _, tool := range Tools() {
		s.AddTool(tool, logged(tool.Name, byName[tool.Name]))
	}

	return s
}

func logged(name string, next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[SERVER] call %s %v", name, req.GetArguments())
		}
		res, err := next(ctx, req)
		if config.DebugLog != nil && (err != nil || (res != nil && res.IsError)) {
			config.DebugLog.Printf("[SERVER] %s failed: %v", name, err)
		}
		return res, err
	}
}

type handlers struct {
	svc *weather.Service
}

// coordinates reads the location, latitude and longitude arguments.
func coordinates(req mcptypes.CallToolRequest) (string, float64, float64, *mcptypes.CallToolResult) {
	location, err := req.RequireString("location")
	if err != nil {
		return "", 0, 0, mcptypes.NewToolResultError(err.Error())
	}
	lat, err := req.RequireFloat("latitude")
	if err != nil {
		return "", 0, 0, mcptypes.NewToolResultError(err.Error())
	}
	lon, err := req.RequireFloat("longitude")
	if err != nil {
		return "", 0, 0, mcptypes.NewToolResultError(err.Error())
	}
	return location, lat, lon, nil
}

func textOrError(text string, err error) (*mcptypes.CallToolResult, error) {
	if err != nil {
		return mcptypes.NewToolResultError(err.Error()), nil
	}
	return mcptypes.NewToolResultText(text), nil
}

func (h *handlers) currentWeather(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	location, lat, lon, bad := coordinates(req)
	if bad != nil {
		return bad, nil
	}
	return textOrError(h.svc.CurrentWeather(ctx, location, lat, lon))
}

func (h *handlers) tenDayForecast(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	location, lat, lon, bad := coordinates(req)
	if bad != nil {
		return bad, nil
	}
	return textOrError(h.svc.TenDayForecast(ctx, location, lat, lon))
}

func (h *handlers) lookupPlace(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	place, err := req.RequireString("place")
	if err != nil {
		return mcptypes.NewToolResultError(err.Error()), nil
	}
	return textOrError(h.svc.LookupPlace(ctx, place))
}

func (h *handlers) alerts(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	state, err := req.RequireString("state")
	if err != nil {
		return mcptypes.NewToolResultError(err.Error()), nil
	}
	return textOrError(h.svc.Alerts(ctx, state))
}

func (h *handlers) forecast(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	lat, err := req.RequireFloat("latitude")
	if err != nil {
		return mcptypes.NewToolResultError(err.Error()), nil
	}
	lon, err := req.RequireFloat("longitude")
	if err != nil {
		return mcptypes.NewToolResultError(err.Error()), nil
	}
	return textOrError(h.svc.Forecast(ctx, lat, lon))
}
