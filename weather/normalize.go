package weather

import (
	"encoding/json"
	"fmt"
	"time"
)

// StalenessThreshold is how far past the start of the current UTC day an
// entry may lie before it is discarded.
const StalenessThreshold = 48 * time.Hour

// Mode selects how many entries Normalize accepts.
type Mode int

const (
	// ModeFirst stops after the first accepted entry.
	ModeFirst Mode = iota
	// ModeAll accepts every valid entry in input order.
	ModeAll
)

// Outlook summarizes one of the next-hours periods of an entry.
type Outlook struct {
	Symbol        string   `json:"symbol_code,omitempty"`
	Precipitation *float64 `json:"precipitation_amount,omitempty"`
}

// WeatherPoint is the flat projection of one forecast step.
type WeatherPoint struct {
	Time                  time.Time `json:"time"`
	AirPressureAtSeaLevel float64   `json:"air_pressure_at_sea_level"`
	AirTemperature        float64   `json:"air_temperature"`
	CloudAreaFraction     float64   `json:"cloud_area_fraction"`
	RelativeHumidity      float64   `json:"relative_humidity"`
	WindFromDirection     float64   `json:"wind_from_direction"`
	WindSpeed             float64   `json:"wind_speed"`
	NextHour              *Outlook  `json:"next_1_hours,omitempty"`
	NextSixHours          *Outlook  `json:"next_6_hours,omitempty"`
	NextTwelveHours       *Outlook  `json:"next_12_hours,omitempty"`
}

// MalformedEntryError reports an entry that lacks a required field. Only the
// entry is dropped.
type MalformedEntryError struct {
	Index int
	Time  string
	Field string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("timeseries entry %d (%s): missing %s", e.Index, e.Time, e.Field)
}

// NormalizeReport counts what Normalize left out.
type NormalizeReport struct {
	Stale     int
	Malformed []*MalformedEntryError
}

// Normalize projects raw entries to WeatherPoints.
//
// today is now truncated to the UTC day. An entry whose time lies more than
// StalenessThreshold after today is skipped without being converted. An
// entry missing a required instant field or with an unparseable time is
// recorded in the report and skipped. Neither case fails the batch, and an
// empty result is not an error.
func Normalize(entries []TimeseriesEntry, now time.Time, mode Mode) ([]WeatherPoint, NormalizeReport) {
	var (
		points []WeatherPoint
		report NormalizeReport
	)
	today := now.UTC().Truncate(24 * time.Hour)

	for i, entry := range entries {
		ts, err := time.Parse(time.RFC3339, entry.Time)
		if err != nil {
			report.Malformed = append(report.Malformed, &MalformedEntryError{Index: i, Time: entry.Time, Field: "time"})
			continue
		}
		ts = ts.UTC()

		if ts.Sub(today) > StalenessThreshold {
			report.Stale++
			continue
		}

		point, merr := project(i, ts, entry)
		if merr != nil {
			report.Malformed = append(report.Malformed, merr)
			continue
		}

		points = append(points, point)
		if mode == ModeFirst {
			break
		}
	}

	return points, report
}

func project(index int, ts time.Time, entry TimeseriesEntry) (WeatherPoint, *MalformedEntryError) {
	d := entry.Data.Instant.Details
	required := []struct {
		field string
		value *float64
	}{
		{"air_pressure_at_sea_level", d.AirPressureAtSeaLevel},
		{"air_temperature", d.AirTemperature},
		{"cloud_area_fraction", d.CloudAreaFraction},
		{"relative_humidity", d.RelativeHumidity},
		{"wind_from_direction", d.WindFromDirection},
		{"wind_speed", d.WindSpeed},
	}
	for _, r := range required {
		if r.value == nil {
			return WeatherPoint{}, &MalformedEntryError{Index: index, Time: entry.Time, Field: r.field}
		}
	}

	point := WeatherPoint{
		Time:                  ts,
		AirPressureAtSeaLevel: *d.AirPressureAtSeaLevel,
		AirTemperature:        *d.AirTemperature,
		CloudAreaFraction:     *d.CloudAreaFraction,
		RelativeHumidity:      *d.RelativeHumidity,
		WindFromDirection:     *d.WindFromDirection,
		WindSpeed:             *d.WindSpeed,
		NextHour:              outlook(entry.Data.Next1Hours, true),
		NextSixHours:          outlook(entry.Data.Next6Hours, true),
		NextTwelveHours:       outlook(entry.Data.Next12Hours, false),
	}
	return point, nil
}

func outlook(p *PeriodSummary, withPrecipitation bool) *Outlook {
	if p == nil {
		return nil
	}
	o := &Outlook{Symbol: p.Summary.SymbolCode}
	if withPrecipitation && p.Details.PrecipitationAmount != nil {
		v := *p.Details.PrecipitationAmount
		o.Precipitation = &v
	}
	if o.Symbol == "" && o.Precipitation == nil {
		return nil
	}
	return o
}

// FormatPoints renders points the way the weather tools return them.
func FormatPoints(points []WeatherPoint) (string, error) {
	if points == nil {
		points = []WeatherPoint{}
	}
	b, err := json.Marshal(points)
	if err != nil {
		return "", err
	}
	return "Current weather : " + string(b), nil
}

// NoWeatherData is the tool result for a location without usable entries.
func NoWeatherData(location string) string {
	return fmt.Sprintf("No current weather data found for '%s'. Try another location to query?", location)
}
