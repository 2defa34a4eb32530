package weather

import (
	"context"
	"time"

	"skycast/config"
	"skycast/storage"
)

// Service bundles the upstream clients behind the weather tools.
type Service struct {
	Yr        *YrClient
	NWS       *NWSClient
	Nominatim *NominatimClient

	now func() time.Time
}

// NewService builds every client from its profile. cache may be nil.
func NewService(profiles config.ProfilesConfig, cache *storage.ResponseCache) *Service {
	return &Service{
		Yr:        NewYrClient(ProfileFromConfig("yr", profiles.Yr), cache),
		NWS:       NewNWSClient(ProfileFromConfig("nws", profiles.NWS), cache),
		Nominatim: NewNominatimClient(ProfileFromConfig("nominatim", profiles.Nominatim), cache),
		now:       time.Now,
	}
}

// SetClock replaces the clock used for the staleness filter.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CurrentWeather returns the first usable forecast step for a coordinate.
func (s *Service) CurrentWeather(ctx context.Context, location string, lat, lon float64) (string, error) {
	return s.yr(ctx, location, lat, lon, ModeFirst)
}

// TenDayForecast returns every usable forecast step for a coordinate.
func (s *Service) TenDayForecast(ctx context.Context, location string, lat, lon float64) (string, error) {
	return s.yr(ctx, location, lat, lon, ModeAll)
}

func (s *Service) yr(ctx context.Context, location string, lat, lon float64, mode Mode) (string, error) {
	// 0,0 is what the model passes when geocoding failed.
	if lat == 0 && lon == 0 {
		return NoWeatherData(location), nil
	}

	entries, target, err := s.Yr.Timeseries(ctx, lat, lon)
	if err != nil {
		return "", err
	}

	points, report := Normalize(entries, s.now(), mode)
	if config.DebugLog != nil {
		config.DebugLog.Printf("[WEATHER] %s: %d entries, %d accepted, %d stale, %d malformed",
			target, len(entries), len(points), report.Stale, len(report.Malformed))
		for _, m := range report.Malformed {
			config.DebugLog.Printf("[WEATHER] dropped %v", m)
		}
	}

	if len(points) == 0 {
		return NoWeatherData(location), nil
	}
	return FormatPoints(points)
}

// LookupPlace geocodes place and formats the result.
func (s *Service) LookupPlace(ctx context.Context, place string) (string, error) {
	lat, lon, found, err := s.Nominatim.Lookup(ctx, place)
	if err != nil {
		return "", err
	}
	return FormatLocation(place, lat, lon, found), nil
}

func (s *Service) Alerts(ctx context.Context, state string) (string, error) {
	return s.NWS.Alerts(ctx, state)
}

func (s *Service) Forecast(ctx context.Context, lat, lon float64) (string, error) {
	return s.NWS.Forecast(ctx, lat, lon)
}
