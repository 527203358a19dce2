package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port    string
	DataDir string

	// Municipality filters official stations by name; Center/RadiusKM
	// bound the community sensor query.
	Municipality string
	CenterLat    float64
	CenterLon    float64
	RadiusKM     float64

	AsturAireBaseURL string
	AsturAireProxies []string
	AsturAireUser    string
	AsturAirePass    string

	CommunityBaseURL string
	WindFeedURL      string
	WindEnabled      bool
	NominatimBaseURL string
	GeocoderAPIKey   string

	// BaselineFile is an extra shipped baseline merged into the history
	// store at startup, on top of the periodically exported snapshot.
	BaselineFile string

	Timezone *time.Location

	SensorRefreshInterval  time.Duration
	WindRefreshInterval    time.Duration
	ForecastInterval       time.Duration
	BaselineExportInterval time.Duration

	HistoryWindow    time.Duration
	CoalesceInterval time.Duration

	HTTPTimeout time.Duration
}

// HistoryPath is the persisted sample history file.
func (c *AppConfig) HistoryPath() string { return filepath.Join(c.DataDir, "history.json") }

// AddressPath is the persisted address cache file.
func (c *AppConfig) AddressPath() string { return filepath.Join(c.DataDir, "addresses.json") }

// StationPath is the cached official station list.
func (c *AppConfig) StationPath() string { return filepath.Join(c.DataDir, "stations.json") }

// ExportPath is where the periodic history snapshot is written.
func (c *AppConfig) ExportPath() string { return filepath.Join(c.DataDir, "baseline.json") }

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.DataDir = getenvDefault("DATA_DIR", "data")

	cfg.Municipality = getenvDefault("MUNICIPALITY", "gijon")
	var err error
	cfg.CenterLat, err = getenvFloat("CENTER_LAT", 43.5322)
	if err != nil {
		return nil, err
	}
	cfg.CenterLon, err = getenvFloat("CENTER_LON", -5.6611)
	if err != nil {
		return nil, err
	}
	cfg.RadiusKM, err = getenvFloat("RADIUS_KM", 6)
	if err != nil {
		return nil, err
	}

	cfg.AsturAireBaseURL = getenvDefault("ASTURAIRE_BASE_URL", "https://calidaddelairews.asturias.es/RestCecoma")
	if proxies := os.Getenv("ASTURAIRE_PROXIES"); proxies != "" {
		for _, p := range strings.Split(proxies, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.AsturAireProxies = append(cfg.AsturAireProxies, p)
			}
		}
	}
	cfg.AsturAireUser = getenvDefault("ASTURAIRE_USER", "manten")
	cfg.AsturAirePass = getenvDefault("ASTURAIRE_PASS", "MANTEN")

	cfg.CommunityBaseURL = getenvDefault("COMMUNITY_BASE_URL", "https://data.sensor.community")
	cfg.WindFeedURL = getenvDefault("WIND_FEED_URL", "https://maps.sensor.community/data/v1/wind.json")
	cfg.WindEnabled = getenvBool("WIND_ENABLED", true)
	cfg.NominatimBaseURL = getenvDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.BaselineFile = os.Getenv("BASELINE_FILE")

	tzName := getenvDefault("TIMEZONE", "Europe/Madrid")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	cfg.SensorRefreshInterval, err = getenvDuration("SENSOR_REFRESH_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.WindRefreshInterval, err = getenvDuration("WIND_REFRESH_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ForecastInterval, err = getenvDuration("FORECAST_INTERVAL", 3*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.BaselineExportInterval, err = getenvDuration("BASELINE_EXPORT_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.HistoryWindow, err = getenvDuration("HISTORY_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.CoalesceInterval, err = getenvDuration("COALESCE_INTERVAL", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
