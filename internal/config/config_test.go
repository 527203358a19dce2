package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("unexpected port %s", cfg.Port)
	}
	if cfg.Municipality != "gijon" {
		t.Fatalf("unexpected municipality %s", cfg.Municipality)
	}
	if cfg.Timezone.String() != "Europe/Madrid" {
		t.Fatalf("unexpected timezone %s", cfg.Timezone)
	}
	if cfg.SensorRefreshInterval != time.Minute {
		t.Fatalf("unexpected refresh interval %s", cfg.SensorRefreshInterval)
	}
	if cfg.HistoryWindow != 24*time.Hour || cfg.CoalesceInterval != 2*time.Minute {
		t.Fatalf("unexpected history settings: %s / %s", cfg.HistoryWindow, cfg.CoalesceInterval)
	}
	if !cfg.WindEnabled {
		t.Fatal("wind layer must default to enabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MUNICIPALITY", "oviedo")
	t.Setenv("SENSOR_REFRESH_INTERVAL", "30s")
	t.Setenv("WIND_ENABLED", "false")
	t.Setenv("ASTURAIRE_PROXIES", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.Municipality != "oviedo" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.SensorRefreshInterval != 30*time.Second {
		t.Fatalf("unexpected interval %s", cfg.SensorRefreshInterval)
	}
	if cfg.WindEnabled {
		t.Fatal("expected wind layer disabled")
	}
	if len(cfg.AsturAireProxies) != 2 || cfg.AsturAireProxies[1] != "https://b.example" {
		t.Fatalf("unexpected proxies: %v", cfg.AsturAireProxies)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SENSOR_REFRESH_INTERVAL", "often")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
