package httpapi

import (
	"context"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/pmxixon/airemap/internal/asturaire"
)

// Forwarder signs and forwards a request to the upstream air quality
// service.
type Forwarder interface {
	Forward(ctx context.Context, path string, params url.Values) ([]byte, int, error)
}

// RegisterProxy exposes a signing proxy for the upstream API so that
// browser clients never see the credentials. Only a fixed set of paths
// is forwarded.
func RegisterProxy(app *fiber.App, client Forwarder) {
	app.Get("/asturaire", func(c *fiber.Ctx) error {
		path := c.Query("path")
		if !asturaire.AllowedPaths[path] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Ruta no permitida",
			})
		}

		params := url.Values{}
		c.Context().QueryArgs().VisitAll(func(key, value []byte) {
			if string(key) == "path" {
				return
			}
			params.Add(string(key), string(value))
		})

		body, status, err := client.Forward(c.Context(), path, params)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   "No se pudo obtener datos de AsturAire.",
				"status":  status,
				"detalle": err.Error(),
			})
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(body)
	})
}
