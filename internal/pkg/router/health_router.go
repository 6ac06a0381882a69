package router

import (
	"github.com/gofiber/fiber/v2"
)

type HealthRouter struct {
	deps Deps
}

func (h HealthRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.deps.Health.HandleHealth)
}

func NewHealthRouter(deps Deps) *HealthRouter {
	return &HealthRouter{deps: deps}
}
