package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meetloom/billing-sync/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the controllers the routes dispatch to. Everything is wired
// once in the composition root; the router only registers paths.
type Deps struct {
	Webhook      *controllers.WebhookController
	Verification *controllers.VerificationController
	Pricing      *controllers.PricingController
	Health       *controllers.HealthController
}

func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewApiRouter(deps), NewHealthRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
