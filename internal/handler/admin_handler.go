package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
	"github.com/fairyhunter13/order-pricing-engine/internal/service"
)

// AdminServiceInterface defines the back-office operations on discount records.
type AdminServiceInterface interface {
	Create(ctx context.Context, req *model.DiscountRequest) (*model.DiscountRecord, error)
	Get(ctx context.Context, code string) (*model.DiscountRecord, error)
	List(ctx context.Context) ([]model.DiscountRecord, error)
	Update(ctx context.Context, code string, req *model.DiscountRequest) (*model.DiscountRecord, error)
	Delete(ctx context.Context, code string) error
}

// AdminHandler handles HTTP requests for managing discount records.
type AdminHandler struct {
	service   AdminServiceInterface
	validator *validator.Validate
}

// NewAdminHandler creates a new AdminHandler with the given service and validator.
func NewAdminHandler(svc AdminServiceInterface, v *validator.Validate) *AdminHandler {
	return &AdminHandler{service: svc, validator: v}
}

// parseDiscountRequest returns the decoded body, or a client message when it is unusable.
func (h *AdminHandler) parseDiscountRequest(c *fiber.Ctx) (*model.DiscountRequest, string) {
	var req model.DiscountRequest

	if err := c.BodyParser(&req); err != nil {
		return nil, "invalid request body"
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	return &req, ""
}

// CreateDiscount handles POST /api/admin/discounts requests.
func (h *AdminHandler) CreateDiscount(c *fiber.Ctx) error {
	req, msg := h.parseDiscountRequest(c)
	if req == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	record, err := h.service.Create(c.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrDiscountExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "discount code already exists"})
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().Err(err).Str("code", req.Code).Msg("failed to create discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("code", record.Code).
		Str("discount_id", record.ID.String()).
		Msg("discount created")

	return c.Status(fiber.StatusCreated).JSON(record)
}

// ListDiscounts handles GET /api/admin/discounts requests.
func (h *AdminHandler) ListDiscounts(c *fiber.Ctx) error {
	records, err := h.service.List(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list discounts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(records)
}

// GetDiscount handles GET /api/admin/discounts/:code requests.
func (h *AdminHandler) GetDiscount(c *fiber.Ctx) error {
	code := c.Params("code")
	if strings.TrimSpace(code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	record, err := h.service.Get(c.Context(), code)
	if err != nil {
		return h.recordError(c, err, code, "failed to get discount")
	}
	return c.JSON(record)
}

// UpdateDiscount handles PUT /api/admin/discounts/:code requests.
func (h *AdminHandler) UpdateDiscount(c *fiber.Ctx) error {
	code := c.Params("code")
	if strings.TrimSpace(code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	req, msg := h.parseDiscountRequest(c)
	if req == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	record, err := h.service.Update(c.Context(), code, req)
	if err != nil {
		if errors.Is(err, service.ErrDiscountExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "discount code already exists"})
		}
		return h.recordError(c, err, code, "failed to update discount")
	}

	log.Info().Str("code", record.Code).Msg("discount updated")
	return c.JSON(record)
}

// DeleteDiscount handles DELETE /api/admin/discounts/:code requests.
func (h *AdminHandler) DeleteDiscount(c *fiber.Ctx) error {
	code := c.Params("code")
	if strings.TrimSpace(code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	if err := h.service.Delete(c.Context(), code); err != nil {
		return h.recordError(c, err, code, "failed to delete discount")
	}

	log.Info().Str("code", code).Msg("discount deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) recordError(c *fiber.Ctx, err error, code, msg string) error {
	switch {
	case errors.Is(err, service.ErrDiscountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found"})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	log.Error().Err(err).Str("code", code).Msg(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
