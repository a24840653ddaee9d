package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
	"github.com/fairyhunter13/order-pricing-engine/internal/pricing"
)

// QuoteHandler prices carts. It has no dependencies beyond request validation.
type QuoteHandler struct {
	validator *validator.Validate
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(v *validator.Validate) *QuoteHandler {
	return &QuoteHandler{validator: v}
}

// Quote handles POST /api/orders/quote requests and returns the cost breakdown.
func (h *QuoteHandler) Quote(c *fiber.Ctx) error {
	var req model.QuoteRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	return c.JSON(pricing.ComputeTotals(req.Items, req.Discount))
}
