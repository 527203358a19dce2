package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pmxixon/airemap/internal/httpx"
)

const maxDays = 5

// Day is one day of the local forecast.
type Day struct {
	Date        string  `json:"date"`
	WeatherCode int     `json:"weatherCode"`
	TempMinC    float64 `json:"tempMinC"`
	TempMaxC    float64 `json:"tempMaxC"`
	UVIndexMax  float64 `json:"uvIndexMax"`
}

// Client fetches the daily forecast from Open-Meteo for a fixed point.
type Client struct {
	baseURL  string
	lat, lon float64
	timezone string
	httpCfg  httpx.Config
	circuit  *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, lat, lon float64, timezone string) *Client {
	return &Client{
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		lat:      lat,
		lon:      lon,
		timezone: timezone,
		httpCfg: httpx.Config{
			Client:  client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit: httpx.NewBreaker("openmeteo"),
	}
}

// Fetch returns up to maxDays days, starting today.
func (c *Client) Fetch(ctx context.Context) ([]Day, error) {
	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", c.lat))
		values.Set("longitude", fmt.Sprintf("%f", c.lon))
		values.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min,uv_index_max")
		values.Set("timezone", c.timezone)
		return http.NewRequest(http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: fetch: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time        []string  `json:"time"`
			WeatherCode []int     `json:"weathercode"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
			UVIndexMax  []float64 `json:"uv_index_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("forecast: decode: %w", err)
	}

	days := make([]Day, 0, maxDays)
	for i, date := range payload.Daily.Time {
		if i >= maxDays {
			break
		}
		d := Day{Date: date}
		if i < len(payload.Daily.WeatherCode) {
			d.WeatherCode = payload.Daily.WeatherCode[i]
		}
		if i < len(payload.Daily.TempMax) {
			d.TempMaxC = payload.Daily.TempMax[i]
		}
		if i < len(payload.Daily.TempMin) {
			d.TempMinC = payload.Daily.TempMin[i]
		}
		if i < len(payload.Daily.UVIndexMax) {
			d.UVIndexMax = payload.Daily.UVIndexMax[i]
		}
		days = append(days, d)
	}
	return days, nil
}

// Feed caches the latest successful forecast. A failed refresh keeps
// the previous days in place.
type Feed struct {
	client *Client

	mu      sync.Mutex
	days    []Day
	updated time.Time
}

func NewFeed(client *Client) *Feed {
	return &Feed{client: client}
}

func (f *Feed) Refresh(ctx context.Context) error {
	days, err := f.client.Fetch(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.days = days
	f.updated = time.Now()
	f.mu.Unlock()
	return nil
}

// Current returns the cached days and when they were fetched.
func (f *Feed) Current() ([]Day, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Day, len(f.days))
	copy(out, f.days)
	return out, f.updated
}
