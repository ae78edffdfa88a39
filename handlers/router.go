package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/ticketscan/scan-backend/shared"
)

// NewApp builds the fiber app with middleware and all routes registered
func NewApp(cfg shared.ServiceConfig, jwtSecret string, scanHandler *ScanHandler, metricsHandler *MetricsHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "scan-backend",
		BodyLimit: cfg.BodyLimitBytes,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", metricsHandler.Health)

	api := app.Group("/api/v1")
	submitLimiter := shared.NewSubmissionRateLimiter(cfg.SubmitInterval)
	metricsHandler.Throttle = submitLimiter
	api.Post("/scanned-tickets", AuthMiddleware(jwtSecret), SubmitRateLimit(submitLimiter), scanHandler.SubmitScan)
	api.Get("/metrics", metricsHandler.GetMetrics)

	return app
}
