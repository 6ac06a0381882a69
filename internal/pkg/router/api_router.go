package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
		// Webhook deliveries must never be rate limited away; Stripe treats
		// 429 as a failure and backs off aggressively.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/stripe/webhook"
		},
	}))

	api.Post("/stripe/webhook", h.deps.Webhook.HandleStripeWebhook)

	api.Post("/email-verification", h.deps.Verification.HandleCreateVerification)
	api.Get("/email-verification/:token", h.deps.Verification.HandleEmailVerification)

	api.Get("/pricing-config", h.deps.Pricing.HandlePricingConfig)
	api.Get("/pricing/estimate", h.deps.Pricing.HandlePricingEstimate)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
