package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Money crosses the API as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DiscountKind identifies how a discount amount is derived.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
	DiscountBOGO       DiscountKind = "bogo"
)

// AllCategories is the category sentinel meaning the discount applies to any cart.
const AllCategories = "all"

// DiscountRecord is the persisted source of truth for a discount code.
type DiscountRecord struct {
	ID            uuid.UUID        `json:"id"`
	Code          string           `json:"code"`
	Kind          DiscountKind     `json:"kind"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit    *int             `json:"usageLimit,omitempty"`
	UsageCount    int              `json:"usageCount"`
	Categories    []string         `json:"categories"`
	Active        bool             `json:"active"`
	ValidFrom     time.Time        `json:"validFrom"`
	ValidUntil    time.Time        `json:"validUntil"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	DeletedAt     *time.Time       `json:"-"`
}

// LiveAt reports whether the record can be applied at the given instant.
func (d *DiscountRecord) LiveAt(now time.Time) bool {
	if d.DeletedAt != nil || !d.Active {
		return false
	}
	return !now.Before(d.ValidFrom) && !now.After(d.ValidUntil)
}

// AppliedDiscount is a record snapshot plus the amount it takes off the cart it was validated against.
type AppliedDiscount struct {
	DiscountRecord
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// Active converts the validation result into the cart-side snapshot.
func (a *AppliedDiscount) Active() ActiveDiscount {
	return ActiveDiscount{
		Code:           a.Code,
		Kind:           a.Kind,
		Value:          a.Value,
		DiscountAmount: a.DiscountAmount,
		MaxDiscount:    a.MaxDiscount,
		MinOrderValue:  a.MinOrderValue,
	}
}

// ActiveDiscount is the discount currently attached to a cart.
type ActiveDiscount struct {
	Code           string           `json:"code"`
	Kind           DiscountKind     `json:"kind" validate:"required,oneof=percentage fixed bogo"`
	Value          decimal.Decimal  `json:"value" validate:"gte=0"`
	DiscountAmount decimal.Decimal  `json:"discountAmount"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount,omitempty" validate:"omitempty,gte=0"`
	MinOrderValue  *decimal.Decimal `json:"minOrderValue,omitempty" validate:"omitempty,gte=0"`
}

// ValidateDiscountRequest is the DTO for POST /api/discounts/validate
type ValidateDiscountRequest struct {
	Code       string           `json:"code" validate:"required,notblank,max=64"`
	CartTotal  *decimal.Decimal `json:"cartTotal" validate:"required,gte=0"`
	Categories []string         `json:"categories"`
}

// ValidateDiscountResponse wraps a successful validation.
type ValidateDiscountResponse struct {
	Success  bool             `json:"success"`
	Discount *AppliedDiscount `json:"discount"`
}

// DiscountRequest is the DTO for creating or replacing a discount record.
// UsageCount is deliberately absent: only the usage accountant moves it.
type DiscountRequest struct {
	Code          string           `json:"code" validate:"required,notblank,max=64"`
	Kind          DiscountKind     `json:"kind" validate:"required,oneof=percentage fixed bogo"`
	Value         *decimal.Decimal `json:"value" validate:"required,gte=0"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue" validate:"omitempty,gte=0"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount" validate:"omitempty,gte=0"`
	UsageLimit    *int             `json:"usageLimit" validate:"omitempty,gte=0"`
	Categories    []string         `json:"categories" validate:"omitempty,dive,notblank,max=64"`
	Active        *bool            `json:"active"`
	ValidFrom     *time.Time       `json:"validFrom"`
	ValidUntil    *time.Time       `json:"validUntil" validate:"required"`
}
