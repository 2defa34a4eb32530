package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycast/config"
	"skycast/weather"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{Name: "WeatherMcpDemoServer", Version: "1.1", Transport: "http"}
}

func geocoder(t *testing.T) *weather.Service {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search" && r.URL.Query().Get("q") == "Bergen":
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"geometry":{"type":"Point","coordinates":[5.3259192,60.3943055]}}]}`)
		case r.URL.Path == "/search":
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(up.Close)

	p := config.ProfileConfig{BaseURL: up.URL, UserAgent: "skycast-test/1.0", Timeout: 5 * time.Second}
	return weather.NewService(config.ProfilesConfig{Yr: p, NWS: p, Nominatim: p}, nil)
}

func connectInProcess(t *testing.T, ws *WeatherServer) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(ws.MCP())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	_, err = c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcptypes.Implementation{Name: "test", Version: "0"},
		},
	})
	require.NoError(t, err)
	return c
}

func TestToolsAnnounced(t *testing.T) {
	ws := New(testServerConfig(), geocoder(t))
	c := connectInProcess(t, ws)

	list, err := c.ListTools(context.Background(), mcptypes.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		ToolCurrentWeather, ToolTenDayForecast, ToolLookupPlace, ToolUSAlerts, ToolUSForecast,
	}, names)

	for _, tool := range list.Tools {
		if tool.Name != ToolCurrentWeather {
			continue
		}
		assert.ElementsMatch(t, []string{"location", "latitude", "longitude"}, tool.InputSchema.Required)
		assert.Contains(t, tool.Description, "NominatimLookupLatLongForPlace")
	}
}

func callText(t *testing.T, c *client.Client, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := mcptypes.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestLookupPlaceTool(t *testing.T) {
	c := connectInProcess(t, New(testServerConfig(), geocoder(t)))

	text, isErr := callText(t, c, ToolLookupPlace, map[string]any{"place": "Bergen"})
	assert.False(t, isErr)
	assert.Equal(t, "Latitude: 60.3943055, Longitude: 5.3259192", text)

	text, isErr = callText(t, c, ToolLookupPlace, map[string]any{"place": "Nowhere"})
	assert.False(t, isErr)
	assert.Equal(t, "No location data found for 'Nowhere'. Try another place to query?", text)
}

func TestCurrentWeatherAtZeroCoordinates(t *testing.T) {
	c := connectInProcess(t, New(testServerConfig(), geocoder(t)))

	text, isErr := callText(t, c, ToolCurrentWeather, map[string]any{
		"location": "Atlantis", "latitude": 0, "longitude": 0,
	})
	assert.False(t, isErr)
	assert.Equal(t, weather.NoWeatherData("Atlantis"), text)
}

func TestToolArgumentErrors(t *testing.T) {
	c := connectInProcess(t, New(testServerConfig(), geocoder(t)))

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing place", ToolLookupPlace, map[string]any{}},
		{"latitude as text", ToolCurrentWeather, map[string]any{"location": "Oslo", "latitude": "north", "longitude": 10.7}},
		{"missing state", ToolUSAlerts, map[string]any{}},
		{"missing longitude", ToolUSForecast, map[string]any{"latitude": 40.7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isErr := callText(t, c, tt.tool, tt.args)
			assert.True(t, isErr)
		})
	}
}

func TestUpstreamFailureIsToolError(t *testing.T) {
	c := connectInProcess(t, New(testServerConfig(), geocoder(t)))

	// the geocoder upstream has no alerts route
	text, isErr := callText(t, c, ToolUSAlerts, map[string]any{"state": "NY"})
	assert.True(t, isErr)
	assert.Contains(t, text, "404")
}

func TestToolsOverview(t *testing.T) {
	ws := New(testServerConfig(), geocoder(t))
	handler, _, err := ws.Handler("http")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var overview struct {
		ServerName string `json:"serverName"`
		Version    string `json:"version"`
		Tools      []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, "WeatherMcpDemoServer", overview.ServerName)
	assert.Equal(t, "1.1", overview.Version)
	assert.Len(t, overview.Tools, 5)
}

func TestUnknownTransport(t *testing.T) {
	ws := New(testServerConfig(), geocoder(t))
	_, _, err := ws.Handler("carrier-pigeon")
	assert.Error(t, err)
}

func TestStreamableHTTPTransport(t *testing.T) {
	ws := New(testServerConfig(), geocoder(t))
	handler, _, err := ws.Handler("http")
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	c, err := client.NewStreamableHttpClient(srv.URL + "/mcp")
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	init, err := c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcptypes.Implementation{Name: "test", Version: "0"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "WeatherMcpDemoServer", init.ServerInfo.Name)

	list, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Tools, 5)
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	ws := New(testServerConfig(), geocoder(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ws.ServeHTTP(ctx, "sse", "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
