package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MarlonX-a/serverless/internal/handlers"
)

// setupCommon registers the endpoints every process exposes.
func setupCommon(app *fiber.App, healthHandler *handlers.HealthHandler) fiber.Router {
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	return app.Group("/api/v1")
}

// SetupServicioRoutes configures the servicio producer routes.
func SetupServicioRoutes(app *fiber.App, healthHandler *handlers.HealthHandler, servicios *handlers.ServicioHandler) {
	api := setupCommon(app, healthHandler)
	{
		api.Post("/servicios", servicios.Create)
		api.Get("/servicios", servicios.List)
		api.Get("/servicios/:id", servicios.Get)
	}
}

// SetupComentarioRoutes configures the comentario producer routes.
func SetupComentarioRoutes(app *fiber.App, healthHandler *handlers.HealthHandler, comentarios *handlers.ComentarioHandler) {
	api := setupCommon(app, healthHandler)
	{
		api.Post("/comentarios", comentarios.Create)
		api.Get("/comentarios", comentarios.List)
		api.Get("/comentarios/:id", comentarios.Get)
		api.Get("/servicios/:id/comentarios", comentarios.ListByServicio)
	}
}

// SetupReceiverRoutes configures the webhook receiver routes.
func SetupReceiverRoutes(app *fiber.App, healthHandler *handlers.HealthHandler, webhooks *handlers.WebhookHandler, events *handlers.EventsHandler) {
	app.Post("/webhooks/events", webhooks.Receive)

	api := setupCommon(app, healthHandler)
	{
		api.Get("/webhook-events", events.GetEvents)
	}
}

// NewApp creates a Fiber app with the middleware every process uses.
func NewApp(appName string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      appName,
		ServerHeader: "Fiber",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Idempotency-Key",
	}))
	return app
}
