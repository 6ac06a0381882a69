package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/meetloom/billing-sync/internal/pkg/verification"
)

var validate = validator.New()

// VerificationController exposes the email verification flow: the signup
// boundary creates a single-use token, the mailed link consumes it.
type VerificationController struct {
	svc *verification.Service
}

func NewVerificationController(svc *verification.Service) *VerificationController {
	return &VerificationController{svc: svc}
}

type createVerificationRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Company         string `json:"company"`
	CompanyBusiness string `json:"companyBusiness"`
	CompanySize     string `json:"companySize"`
	UseCase         string `json:"useCase"`
}

// HandleCreateVerification issues a verification token for a signup request.
func (vc *VerificationController) HandleCreateVerification(c *fiber.Ctx) error {
	var req createVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_email"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, err := vc.svc.CreateToken(ctx, verification.TokenData{
		Email:           req.Email,
		Company:         strings.TrimSpace(req.Company),
		CompanyBusiness: strings.TrimSpace(req.CompanyBusiness),
		CompanySize:     strings.TrimSpace(req.CompanySize),
		UseCase:         strings.TrimSpace(req.UseCase),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "token_creation_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "token": token})
}

// HandleEmailVerification consumes a verification token from the mailed link
// and redirects to the matching result page.
func (vc *VerificationController) HandleEmailVerification(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch vc.svc.Verify(ctx, token) {
	case verification.ResultSuccess:
		return c.Redirect("/verification-success", fiber.StatusFound)
	case verification.ResultExpired:
		return c.Redirect("/verification-expired", fiber.StatusFound)
	default:
		return c.Redirect("/verification-failed", fiber.StatusFound)
	}
}
