package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/meetloom/billing-sync/internal/pkg/adminapi"
	"github.com/meetloom/billing-sync/internal/pkg/tokenstore"
)

// HealthChecker is the slice of the admin client the health endpoint needs.
type HealthChecker interface {
	Health(ctx context.Context) adminapi.HealthStatus
}

// HealthController reports service liveness plus the state of both
// dependencies: the admin API (with breaker snapshot) and the token store.
type HealthController struct {
	admin HealthChecker
	store *tokenstore.Store
}

func NewHealthController(admin HealthChecker, store *tokenstore.Store) *HealthController {
	return &HealthController{admin: admin, store: store}
}

func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminHealth := hc.admin.Health(ctx)

	storeMode := "primary"
	if err := hc.store.Ping(ctx); err != nil {
		storeMode = "fallback"
	}

	status := fiber.StatusOK
	overall := "ok"
	if adminHealth.Status == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":      overall,
		"admin_api":   adminHealth,
		"token_store": storeMode,
	})
}
