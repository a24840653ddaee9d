package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
	"github.com/fairyhunter13/order-pricing-engine/internal/service"
)

// DiscountServiceInterface defines the interface for discount validation.
type DiscountServiceInterface interface {
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal, categories []string) (*model.AppliedDiscount, error)
}

// DiscountHandler handles HTTP requests for applying discount codes to carts.
type DiscountHandler struct {
	service   DiscountServiceInterface
	validator *validator.Validate
}

// NewDiscountHandler creates a new DiscountHandler with the given service and validator.
func NewDiscountHandler(svc DiscountServiceInterface, v *validator.Validate) *DiscountHandler {
	return &DiscountHandler{service: svc, validator: v}
}

// ValidateDiscount handles POST /api/discounts/validate requests.
func (h *DiscountHandler) ValidateDiscount(c *fiber.Ctx) error {
	var req model.ValidateDiscountRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	applied, err := h.service.Validate(c.Context(), req.Code, *req.CartTotal, req.Categories)
	if err != nil {
		var minErr *service.MinOrderError
		switch {
		case errors.Is(err, service.ErrDiscountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found or expired"})
		case errors.Is(err, service.ErrUsageLimitReached):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount usage limit reached"})
		case errors.As(err, &minErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":         "minimum order value not met",
				"minOrderValue": minErr.Required,
			})
		case errors.Is(err, service.ErrNotApplicable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount not applicable to cart contents"})
		case errors.Is(err, service.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
		}
		log.Error().Err(err).Str("code", req.Code).Msg("failed to validate discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("code", applied.Code).
		Str("discount_id", applied.ID.String()).
		Str("discount_amount", applied.DiscountAmount.String()).
		Msg("discount applied")

	return c.JSON(model.ValidateDiscountResponse{Success: true, Discount: applied})
}
