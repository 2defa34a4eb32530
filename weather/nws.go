package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"skycast/storage"
)

type nwsAlerts struct {
	Features []struct {
		Properties struct {
			Headline    string `json:"headline"`
			Event       string `json:"event"`
			AreaDesc    string `json:"areaDesc"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Instruction string `json:"instruction"`
			Certainty   string `json:"certainty"`
		} `json:"properties"`
	} `json:"features"`
}

type nwsPoints struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type nwsForecast struct {
	Properties struct {
		Periods []struct {
			Name             string `json:"name"`
			Temperature      int    `json:"temperature"`
			WindSpeed        string `json:"windSpeed"`
			WindDirection    string `json:"windDirection"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// NWSClient reads alerts and forecasts from the US National Weather Service.
type NWSClient struct {
	api *apiClient
}

func NewNWSClient(p Profile, cache *storage.ResponseCache) *NWSClient {
	return &NWSClient{api: newAPIClient(p, cache)}
}

const noActiveAlerts = "No active alerts for this state."

// Alerts lists the active alerts for a two letter state code.
func (c *NWSClient) Alerts(ctx context.Context, state string) (string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if len(state) != 2 {
		return "", fmt.Errorf("state must be a 2 letter abbreviation, got %q", state)
	}

	var resp nwsAlerts
	if _, err := c.api.getJSON(ctx, "/alerts/active/area/"+url.PathEscape(state), nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Features) == 0 {
		return noActiveAlerts, nil
	}

	alerts := make([]string, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		alerts = append(alerts, strings.Join([]string{
			"Headline: " + p.Headline,
			"Event: " + p.Event,
			"Area: " + p.AreaDesc,
			"Severity: " + p.Severity,
			"Description: " + p.Description,
			"Instruction: " + p.Instruction,
			"Certainty: " + p.Certainty,
		}, "\n"))
	}
	return strings.Join(alerts, "\n--\n"), nil
}

// Forecast resolves the forecast office for a coordinate via /points and
// returns its forecast periods.
func (c *NWSClient) Forecast(ctx context.Context, lat, lon float64) (string, error) {
	pointPath := "/points/" + strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)

	var points nwsPoints
	target, err := c.api.getJSON(ctx, pointPath, nil, &points)
	if err != nil {
		return "", err
	}
	if points.Properties.Forecast == "" {
		return "", fmt.Errorf("no forecast URL provided by %s", target)
	}

	var forecast nwsForecast
	if _, err := c.api.getJSON(ctx, points.Properties.Forecast, nil, &forecast); err != nil {
		return "", err
	}

	periods := make([]string, 0, len(forecast.Properties.Periods))
	for _, p := range forecast.Properties.Periods {
		periods = append(periods, fmt.Sprintf("%s\nTemperature: %d°F\nWind: %s %s\nForecast: %s",
			p.Name, p.Temperature, p.WindSpeed, p.WindDirection, p.DetailedForecast))
	}
	return strings.Join(periods, "\n---\n"), nil
}
