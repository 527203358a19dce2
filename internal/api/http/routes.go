package httpapi

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/pmxixon/airemap/internal/forecast"
	"github.com/pmxixon/airemap/internal/sensor"
	"github.com/pmxixon/airemap/internal/wind"
)

var validate = validator.New()

// HistoryReader exposes per-sensor sample history to the API.
type HistoryReader interface {
	Read(id string) []sensor.HistorySample
}

// Deps bundles everything the handlers read from. WindCtrl and
// ForecastFeed may be nil; the matching endpoints then answer 404.
type Deps struct {
	Sensors      *sensor.Service
	History      HistoryReader
	WindCtrl     *wind.Controller
	ForecastFeed *forecast.Feed
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/sensors", func(c *fiber.Ctx) error {
		var q sensorsQuery
		q.Source = c.Query("source")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		list := deps.Sensors.Sensors(sensor.SourceKind(q.Source))
		return c.JSON(fiber.Map{
			"count":   len(list),
			"sensors": list,
		})
	})

	v1.Get("/sensors/:id", func(c *fiber.Ctx) error {
		rec, ok := deps.Sensors.Sensor(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown sensor id")
		}
		return c.JSON(rec)
	})

	v1.Get("/sensors/:id/history", func(c *fiber.Ctx) error {
		id := c.Params("id")
		samples := deps.History.Read(id)
		if samples == nil {
			return fiber.NewError(fiber.StatusNotFound, "no history for sensor")
		}
		return c.JSON(fiber.Map{
			"id":      id,
			"samples": samples,
		})
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(deps.Sensors.Status())
	})

	v1.Get("/wind/field", func(c *fiber.Ctx) error {
		if deps.WindCtrl == nil {
			return fiber.NewError(fiber.StatusNotFound, "wind layer disabled")
		}

		var q windQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sf := deps.WindCtrl.ScreenFieldFor(wind.Viewport{
			Width:     q.Width,
			Height:    q.Height,
			Zoom:      q.Zoom,
			CenterLon: q.Lon,
			CenterLat: q.Lat,
		})
		if sf == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "wind field not loaded yet")
		}
		return c.JSON(fiber.Map{
			"field":   sf,
			"updated": deps.WindCtrl.Updated().UTC().Format(time.RFC3339),
		})
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		if deps.ForecastFeed == nil {
			return fiber.NewError(fiber.StatusNotFound, "forecast disabled")
		}
		days, updated := deps.ForecastFeed.Current()
		if len(days) == 0 {
			return fiber.NewError(fiber.StatusServiceUnavailable, "forecast not loaded yet")
		}
		return c.JSON(fiber.Map{
			"days":    days,
			"updated": updated.UTC().Format(time.RFC3339),
		})
	})
}

type sensorsQuery struct {
	Source string `validate:"omitempty,oneof=community official"`
}

type windQuery struct {
	Width  float64 `query:"width" validate:"required,gt=0,lte=8192"`
	Height float64 `query:"height" validate:"required,gt=0,lte=8192"`
	Zoom   float64 `query:"zoom" validate:"required,gte=1,lte=22"`
	Lat    float64 `query:"lat" validate:"gte=-90,lte=90"`
	Lon    float64 `query:"lon" validate:"gte=-180,lte=180"`
}
