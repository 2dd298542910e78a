// Package internal wires the application together: configuration,
// database, HTTP surface, and background jobs.
package internal

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	v1 "analyzr/api/v1"
	"analyzr/web"
)

// publicCORSConfig is the CORS setup shared by the public endpoints. The
// tracking snippet posts cross-origin from every tracked page, so the
// ingest surface has to stay permissive.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	AllowHeaders: "Content-Type, Authorization",
}

// MountRoutes attaches middleware and every HTTP route to the Fiber app.
func MountRoutes(app *fiber.App, handler *v1.Handler) {
	app.Use(recover.New())
	app.Use(cors.New(publicCORSConfig))

	// Snippet delivery. Served at the root so the embed tag stays short.
	app.Get("/tracking-script.js", func(c *fiber.Ctx) error {
		data, err := web.TrackingScript()
		if err != nil {
			return c.SendStatus(fiber.StatusNotFound)
		}
		c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		return c.Send(data)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Public ingest surface.
	api.Post("/track", handler.Track)

	// Authenticated custom-event API.
	api.Post("/events", handler.CreateEvent)
	api.Get("/events", handler.ListEvents)

	// Dashboard queries.
	api.Get("/stats", handler.Stats)
	api.Get("/active-users", handler.ActiveUsers)

	// Website management.
	api.Post("/websites", handler.CreateWebsite)
	api.Get("/websites", handler.ListWebsites)
	api.Delete("/websites/:name", handler.DeleteWebsite)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	})
}
