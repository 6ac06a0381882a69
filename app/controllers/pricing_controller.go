package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meetloom/billing-sync/internal/pkg/pricing"
)

// PricingController serves the public pricing schedule and quantity
// estimates for the pricing slider.
type PricingController struct {
	schedule pricing.Schedule
}

func NewPricingController(schedule pricing.Schedule) *PricingController {
	return &PricingController{schedule: schedule}
}

func (pc *PricingController) HandlePricingConfig(c *fiber.Ctx) error {
	tiers := make([]fiber.Map, 0, len(pc.schedule))
	for i, tier := range pc.schedule {
		entry := fiber.Map{
			"unit_amount": tier.UnitAmount,
		}
		if tier.UpTo == pricing.UpToInf {
			entry["up_to"] = "inf"
		} else {
			entry["up_to"] = tier.UpTo
		}
		if info, ok := pricing.TierInfo(boundFor(pc.schedule, i), pc.schedule); ok {
			entry["name"] = info.Name
			entry["description"] = info.Description
		}
		tiers = append(tiers, entry)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"currency": "usd",
		"interval": "month",
		"tiers":    tiers,
	})
}

func (pc *PricingController) HandlePricingEstimate(c *fiber.Ctx) error {
	quantity := c.QueryInt("quantity", -1)
	if quantity < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_quantity"})
	}

	price := pricing.Price(quantity, pc.schedule)
	resp := fiber.Map{
		"quantity":  quantity,
		"price":     price,
		"formatted": pricing.FormatPrice(price, "usd"),
		"breakdown": pricing.Breakdown(quantity, pc.schedule),
	}
	if info, ok := pricing.TierInfo(quantity, pc.schedule); ok {
		resp["tier"] = info
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// boundFor picks a quantity that lands in tier i, so the config endpoint can
// attach the tier's display name.
func boundFor(s pricing.Schedule, i int) int {
	if s[i].UpTo == pricing.UpToInf {
		if i == 0 {
			return 1
		}
		return s[i-1].UpTo + 1
	}
	return s[i].UpTo
}
