package world

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ayalabs/aya/internal/config"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoFetcher pulls current conditions from the free Open-Meteo
// endpoint. No API key required.
type OpenMeteoFetcher struct {
	client   *http.Client
	baseURL  string
	lat, lon float64
	city     string
	tz       string
}

func NewOpenMeteoFetcher(cfg *config.WorldConfig) *OpenMeteoFetcher {
	return &OpenMeteoFetcher{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: openMeteoURL,
		lat:     cfg.Latitude,
		lon:     cfg.Longitude,
		city:    cfg.City,
		tz:      cfg.Timezone,
	}
}

type openMeteoResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
}

func (f *OpenMeteoFetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(f.lat, 'f', 2, 64))
	q.Set("longitude", strconv.FormatFloat(f.lon, 'f', 2, 64))
	q.Set("current", "temperature_2m,precipitation,weather_code")
	q.Set("timezone", f.tz)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo status %d", resp.StatusCode)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode open-meteo response: %w", err)
	}

	temp := body.Current.Temperature
	return &Snapshot{
		Status: "ok",
		City:   f.city,
		TZ:     f.tz,
		Weather: &Weather{
			TempC:   &temp,
			IsRainy: isRainy(body.Current.Precipitation, body.Current.WeatherCode),
		},
	}, nil
}

// isRainy reads WMO weather codes: drizzle 51-57, rain 61-67,
// showers 80-82, thunderstorm 95-99. Any measured precipitation also
// counts.
func isRainy(precipitation float64, code int) bool {
	if precipitation > 0 {
		return true
	}
	switch {
	case code >= 51 && code <= 67:
		return true
	case code >= 80 && code <= 82:
		return true
	case code >= 95 && code <= 99:
		return true
	}
	return false
}
