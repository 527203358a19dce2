package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/sony/gobreaker"

	"github.com/pmxixon/airemap/internal/httpx"
	"github.com/pmxixon/airemap/internal/sensor"
)

// CommunitySource normalizes the crowd-sourced feed. One physical
// location commonly reports through several logical sensors with
// complementary coverage (a particulate sensor plus a meteo sensor at
// the same spot), so entries are grouped by location and coalesced into
// a single record.
type CommunitySource struct {
	name     string
	baseURL  string
	center   orb.Point
	radiusKM float64
	httpCfg  httpx.Config
	circuit  *gobreaker.CircuitBreaker
}

func NewCommunitySource(client *http.Client, baseURL string, lat, lon, radiusKM float64) *CommunitySource {
	return &CommunitySource{
		name:     "community",
		baseURL:  strings.TrimRight(baseURL, "/"),
		center:   orb.Point{lon, lat},
		radiusKM: radiusKM,
		httpCfg: httpx.Config{
			Client:  client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit: httpx.NewBreaker("community"),
	}
}

func (s *CommunitySource) Name() string { return s.name }

type communityEntry struct {
	Timestamp string `json:"timestamp"`
	Sensor    struct {
		ID int64 `json:"id"`
	} `json:"sensor"`
	Location struct {
		ID        int64  `json:"id"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
	SensorDataValues []communityValue `json:"sensordatavalues"`
}

type communityValue struct {
	ValueType string `json:"value_type"`
	Value     string `json:"value"`
}

func (s *CommunitySource) Fetch(ctx context.Context) ([]sensor.NormalizedSensor, error) {
	resp, err := httpx.Do(ctx, s.httpCfg, s.circuit, func() (*http.Request, error) {
		u := fmt.Sprintf("%s/airrohr/v1/filter/area=%v,%v,%v",
			s.baseURL, s.center.Lat(), s.center.Lon(), s.radiusKM)
		return http.NewRequest(http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("community fetch: %w", err)
	}
	defer resp.Body.Close()

	var entries []communityEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("community decode: %w", err)
	}

	return s.normalize(entries), nil
}

// normalize groups entries by physical location and coalesces metrics
// first-wins, which biases the record's identity toward the
// particulate-reporting sensor.
func (s *CommunitySource) normalize(entries []communityEntry) []sensor.NormalizedSensor {
	byLocation := make(map[string]*sensor.NormalizedSensor)
	var order []string

	for _, entry := range entries {
		lon, lonErr := strconv.ParseFloat(entry.Location.Longitude, 64)
		lat, latErr := strconv.ParseFloat(entry.Location.Latitude, 64)
		if lonErr != nil || latErr != nil || !finite(lon) || !finite(lat) {
			continue
		}
		if s.radiusKM > 0 && geo.DistanceHaversine(orb.Point{lon, lat}, s.center) > s.radiusKM*1000 {
			continue
		}

		key := locationKey(entry.Location.ID, lat, lon)
		rec, ok := byLocation[key]
		if !ok {
			rec = &sensor.NormalizedSensor{
				ID:     key,
				Source: sensor.SourceCommunity,
				Lon:    lon,
				Lat:    lat,
			}
			byLocation[key] = rec
			order = append(order, key)
		}

		if ts, ok := parseFeedTimestamp(entry.Timestamp); ok && ts > rec.Timestamp {
			rec.Timestamp = ts
		}

		values := entry.SensorDataValues
		pm10 := valueFrom(values, "P1")
		pm25 := valueFrom(values, "P2")
		coalesce(&rec.PM10, pm10)
		coalesce(&rec.PM25, pm25)
		if (pm10 != nil || pm25 != nil) && rec.NodeID == "" && entry.Sensor.ID != 0 {
			rec.NodeID = strconv.FormatInt(entry.Sensor.ID, 10)
		}
		coalesce(&rec.Humidity, valueFrom(values, "humidity"))
		coalesce(&rec.Temperature, valueFrom(values, "temperature"))

		pressure := valueFrom(values, "pressure_at_sealevel")
		if pressure == nil {
			pressure = valueFrom(values, "pressure")
		}
		if rec.Pressure == nil && pressure != nil {
			rec.Pressure = normalizePressure(*pressure)
		}
	}

	sensors := make([]sensor.NormalizedSensor, 0, len(order))
	for _, key := range order {
		sensors = append(sensors, *byLocation[key])
	}
	return sensors
}

// locationKey prefers the feed's location id; entries without one fall
// back to a rounded-coordinate key so co-located sensors still group.
func locationKey(id int64, lat, lon float64) string {
	if id != 0 {
		return strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%.5f:%.5f", lat, lon)
}

func valueFrom(values []communityValue, key string) *float64 {
	for _, v := range values {
		if v.ValueType != key {
			continue
		}
		n, err := strconv.ParseFloat(v.Value, 64)
		if err != nil || !finite(n) {
			return nil
		}
		return &n
	}
	return nil
}

// normalizePressure detects magnitude: raw values of 2000 and above are
// Pa-scaled and divided down to hPa, smaller values are hPa already.
func normalizePressure(v float64) *float64 {
	if v >= 2000 {
		v = v / 100
	}
	return &v
}

func coalesce(dst **float64, v *float64) {
	if *dst == nil && v != nil {
		*dst = v
	}
}

var offsetDigits = regexp.MustCompile(`([+-]\d{2})(\d{2})$`)

// parseFeedTimestamp accepts the feed's "YYYY-MM-DD HH:MM:SS" stamps
// (assumed UTC) as well as ISO 8601 with or without a colon in the
// offset. Returns epoch millis.
func parseFeedTimestamp(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	iso := value
	if !strings.Contains(iso, "T") {
		iso = strings.Replace(iso, " ", "T", 1) + "Z"
	}
	iso = offsetDigits.ReplaceAllString(iso, "$1:$2")
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
