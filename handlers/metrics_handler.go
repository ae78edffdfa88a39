package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ticketscan/scan-backend/services"
	"github.com/ticketscan/scan-backend/shared"
)

// PoolChecker is the part of *sql.DB the health and metrics endpoints use
type PoolChecker interface {
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
}

type MetricsHandler struct {
	DB        PoolChecker
	Verifier  *services.VerificationService
	Extractor *services.FieldExtractor
	Throttle  *shared.SubmissionRateLimiter
	startedAt time.Time
}

func NewMetricsHandler(db PoolChecker, verifier *services.VerificationService, extractor *services.FieldExtractor) *MetricsHandler {
	return &MetricsHandler{
		DB:        db,
		Verifier:  verifier,
		Extractor: extractor,
		startedAt: time.Now(),
	}
}

// Health handles GET /health
func (h *MetricsHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		shared.WrapError(err, shared.ErrorCategoryDatabase, shared.CodeConnectionFailed, "metrics-handler", "Health").LogError()
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "down",
		})
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"database": "up",
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
		"pool":     poolStats(h.DB.Stats()),
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *MetricsHandler) GetMetrics(c *fiber.Ctx) error {
	data := fiber.Map{
		"verification": h.Verifier.GetServiceMetrics().GetSnapshot(),
		"database":     h.Verifier.GetDatabaseMetrics().GetSnapshot(),
		"extraction":   h.Extractor.Metrics().GetSnapshot(),
		"pool":         poolStats(h.DB.Stats()),
	}
	if h.Throttle != nil {
		data["throttle"] = fiber.Map{
			"accepted": h.Throttle.GetRequestCount(),
			"rejected": h.Throttle.GetRejectedCount(),
		}
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"data":      data,
		"timestamp": time.Now(),
	})
}

func poolStats(stats sql.DBStats) fiber.Map {
	return fiber.Map{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}
