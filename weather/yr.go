package weather

import (
	"context"
	"math"
	"net/url"
	"strconv"

	"skycast/storage"
)

// Compact forecast payload of api.met.no locationforecast 2.0. Instant
// fields are pointers so that a missing value can be told apart from zero.

type yrResponse struct {
	Properties struct {
		Timeseries []TimeseriesEntry `json:"timeseries"`
	} `json:"properties"`
}

// TimeseriesEntry is one raw forecast step.
type TimeseriesEntry struct {
	Time string    `json:"time"`
	Data EntryData `json:"data"`
}

type EntryData struct {
	Instant struct {
		Details InstantDetails `json:"details"`
	} `json:"instant"`
	Next1Hours  *PeriodSummary `json:"next_1_hours,omitempty"`
	Next6Hours  *PeriodSummary `json:"next_6_hours,omitempty"`
	Next12Hours *PeriodSummary `json:"next_12_hours,omitempty"`
}

// InstantDetails holds the required scalar fields of an entry.
type InstantDetails struct {
	AirPressureAtSeaLevel *float64 `json:"air_pressure_at_sea_level,omitempty"`
	AirTemperature        *float64 `json:"air_temperature,omitempty"`
	CloudAreaFraction     *float64 `json:"cloud_area_fraction,omitempty"`
	RelativeHumidity      *float64 `json:"relative_humidity,omitempty"`
	WindFromDirection     *float64 `json:"wind_from_direction,omitempty"`
	WindSpeed             *float64 `json:"wind_speed,omitempty"`
}

type PeriodSummary struct {
	Summary struct {
		SymbolCode string `json:"symbol_code"`
	} `json:"summary"`
	Details struct {
		PrecipitationAmount *float64 `json:"precipitation_amount,omitempty"`
	} `json:"details"`
}

const yrCompactPath = "/weatherapi/locationforecast/2.0/compact"

// YrClient reads the met.no location forecast.
type YrClient struct {
	api *apiClient
}

func NewYrClient(p Profile, cache *storage.ResponseCache) *YrClient {
	return &YrClient{api: newAPIClient(p, cache)}
}

// Timeseries returns the raw forecast steps for a coordinate together with
// the URL they were read from.
func (c *YrClient) Timeseries(ctx context.Context, lat, lon float64) ([]TimeseriesEntry, string, error) {
	query := url.Values{}
	query.Set("lat", formatCoord(lat))
	query.Set("lon", formatCoord(lon))

	var resp yrResponse
	target, err := c.api.getJSON(ctx, yrCompactPath, query, &resp)
	if err != nil {
		return nil, target, err
	}
	return resp.Properties.Timeseries, target, nil
}

// formatCoord rounds to the four decimals met.no accepts.
func formatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
