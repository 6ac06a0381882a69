package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/meetloom/billing-sync/app/controllers"
	"github.com/meetloom/billing-sync/internal/pkg/adminapi"
	"github.com/meetloom/billing-sync/internal/pkg/billing"
	"github.com/meetloom/billing-sync/internal/pkg/config"
	"github.com/meetloom/billing-sync/internal/pkg/env"
	"github.com/meetloom/billing-sync/internal/pkg/mail"
	"github.com/meetloom/billing-sync/internal/pkg/pricing"
	"github.com/meetloom/billing-sync/internal/pkg/router"
	"github.com/meetloom/billing-sync/internal/pkg/tokenstore"
	"github.com/meetloom/billing-sync/internal/pkg/verification"
)

func main() {
	app, cfg := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort))
	log.Fatal(err)
}

// NewApplication wires the full service: config, token store, admin client,
// webhook processor, verification flow and the HTTP surface.
func NewApplication() (*fiber.App, *config.Config) {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		// Refuse to serve with an incomplete configuration. A webhook
		// endpoint without its signing secret would reject everything.
		log.Fatalf("[config] %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.CacheAddr()})
	store := tokenstore.New(client)

	breaker := adminapi.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	admin := adminapi.NewClient(cfg.AdminAPIURL, cfg.AdminAPIToken, cfg.AdminTimeout, breaker)

	schedule := pricing.DefaultSchedule()
	processor := billing.NewProcessor(cfg.StripeWebhookSecret, schedule, store, admin)
	verifier := verification.NewService(store, admin, mail.SendWelcomeEmail)

	app := fiber.New(fiber.Config{
		AppName: "billing-sync",
		// Webhook payloads are small; anything bigger is not from Stripe.
		BodyLimit: 1 << 20,
	})

	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Deps{
		Webhook:      controllers.NewWebhookController(processor),
		Verification: controllers.NewVerificationController(verifier),
		Pricing:      controllers.NewPricingController(schedule),
		Health:       controllers.NewHealthController(admin, store),
	})

	return app, cfg
}
