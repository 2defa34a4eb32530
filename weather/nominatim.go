package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"skycast/storage"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// NominatimClient geocodes place names through OpenStreetMap Nominatim.
type NominatimClient struct {
	api *apiClient
}

func NewNominatimClient(p Profile, cache *storage.ResponseCache) *NominatimClient {
	return &NominatimClient{api: newAPIClient(p, cache)}
}

// Lookup returns the coordinate of the best match for place. found is false
// when Nominatim has no point geometry for it.
func (c *NominatimClient) Lookup(ctx context.Context, place string) (lat, lon float64, found bool, err error) {
	query := url.Values{}
	query.Set("q", place)
	query.Set("format", "geojson")
	query.Set("limit", "1")

	var resp geocodeResponse
	if _, err := c.api.getJSON(ctx, "/search", query, &resp); err != nil {
		return 0, 0, false, err
	}
	if len(resp.Features) == 0 {
		return 0, 0, false, nil
	}

	// GeoJSON orders coordinates as [lon, lat].
	g := resp.Features[0].Geometry
	if !strings.EqualFold(g.Type, "point") || len(g.Coordinates) < 2 {
		return 0, 0, false, nil
	}
	return g.Coordinates[1], g.Coordinates[0], true, nil
}

// FormatLocation renders a Lookup result the way the geocoding tool returns it.
func FormatLocation(place string, lat, lon float64, found bool) string {
	if !found {
		return fmt.Sprintf("No location data found for '%s'. Try another place to query?", place)
	}
	return "Latitude: " + strconv.FormatFloat(lat, 'f', -1, 64) + ", Longitude: " + strconv.FormatFloat(lon, 'f', -1, 64)
}
