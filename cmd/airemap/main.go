package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/pmxixon/airemap/internal/api/http"
	"github.com/pmxixon/airemap/internal/asturaire"
	"github.com/pmxixon/airemap/internal/config"
	"github.com/pmxixon/airemap/internal/forecast"
	"github.com/pmxixon/airemap/internal/geocode"
	"github.com/pmxixon/airemap/internal/scheduler"
	"github.com/pmxixon/airemap/internal/sensor"
	"github.com/pmxixon/airemap/internal/sensor/sources"
	"github.com/pmxixon/airemap/internal/store"
	"github.com/pmxixon/airemap/internal/wind"
)

func main() {
	// Load configuration (reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Persistent stores.
	history := store.NewHistoryStore(cfg.HistoryPath(), cfg.HistoryWindow, cfg.CoalesceInterval)
	history.MergeBaselineFile(cfg.ExportPath())
	if cfg.BaselineFile != "" {
		history.MergeBaselineFile(cfg.BaselineFile)
	}
	addresses := store.NewAddressCache(cfg.AddressPath())
	stations := store.NewStationCache(cfg.StationPath())

	// Upstream clients.
	upstream := asturaire.NewClient(asturaire.Config{
		BaseURL:   cfg.AsturAireBaseURL,
		ProxyURLs: cfg.AsturAireProxies,
		User:      cfg.AsturAireUser,
		Pass:      cfg.AsturAirePass,
		Client:    httpClient,
	})

	// Sensor sources and fusing service.
	srcs := []sensor.Source{
		sources.NewCommunitySource(httpClient, cfg.CommunityBaseURL, cfg.CenterLat, cfg.CenterLon, cfg.RadiusKM),
		sources.NewOfficialSource(upstream, stations, cfg.Municipality, cfg.Timezone),
	}
	service := sensor.NewService(history, srcs)

	resolver := geocode.NewResolver(cfg.NominatimBaseURL, httpClient, addresses, cfg.GeocoderAPIKey)
	resolver.OnResolved = service.SetAddress
	service.SetResolver(resolver)

	// Wind layer (optional).
	var windCtrl *wind.Controller
	if cfg.WindEnabled {
		windCtrl = wind.NewController(wind.NewFeedClient(cfg.WindFeedURL, httpClient))
	}

	forecastFeed := forecast.NewFeed(forecast.NewClient(httpClient, cfg.CenterLat, cfg.CenterLon, cfg.Timezone.String()))

	// Prime everything once before serving.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	if err := service.Refresh(startupCtx); err != nil {
		log.Printf("initial sensor refresh failed: %v", err)
	}
	if windCtrl != nil {
		if err := windCtrl.Refresh(startupCtx); err != nil {
			log.Printf("initial wind refresh failed: %v", err)
		}
	}
	if err := forecastFeed.Refresh(startupCtx); err != nil {
		log.Printf("initial forecast refresh failed: %v", err)
	}
	cancelStartup()

	// Background jobs.
	sched := scheduler.New(scheduler.Intervals{
		SensorRefresh:  cfg.SensorRefreshInterval,
		WindRefresh:    cfg.WindRefreshInterval,
		Forecast:       cfg.ForecastInterval,
		BaselineExport: cfg.BaselineExportInterval,
	}, service, windCtrl, forecastFeed, history, cfg.ExportPath())
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "airemap",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airemap",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Sensors:      service,
		History:      history,
		WindCtrl:     windCtrl,
		ForecastFeed: forecastFeed,
	})
	httpapi.RegisterProxy(app, upstream)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
