// Package server assembles the Fiber application from the services built
// at startup.
package server

import (
	"time"

	"vinotheque/internal/handlers"
	"vinotheque/internal/middleware"
	"vinotheque/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// DefaultAllowOrigins lists the development frontends.
const DefaultAllowOrigins = "http://localhost:3000,http://app.localhost,http://127.0.0.1:3000"

// Options controls the HTTP surface.
type Options struct {
	// AllowOrigins is the comma separated list of CORS origins.
	AllowOrigins string
	// Verbose adds messages and stack traces to error bodies.
	Verbose bool
	// RequestLog enables the per-request access log.
	RequestLog bool
}

// New builds the Fiber app serving the catalog and authentication APIs.
func New(opts Options, catalog *services.CatalogService, auth *services.AuthService) *fiber.App {
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = DefaultAllowOrigins
	}

	app := fiber.New(fiber.Config{
		AppName:      "vinotheque",
		ErrorHandler: middleware.ErrorHandler(opts.Verbose),
	})

	app.Use(recover.New())
	if opts.RequestLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"statut":     "ok",
			"horodatage": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	api := app.Group("/api")
	handlers.NewProductHandler(catalog).RegisterRoutes(api)
	handlers.NewAuthHandler(auth).RegisterRoutes(api)

	app.Use(middleware.NotFound)
	return app
}
