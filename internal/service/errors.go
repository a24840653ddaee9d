package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDiscountExists is returned when attempting to create a discount whose code is already live
	ErrDiscountExists = errors.New("discount code already exists")

	// ErrDiscountNotFound is returned when a code is unknown, inactive, deleted or outside its validity window
	ErrDiscountNotFound = errors.New("discount not found or expired")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUsageLimitReached is returned when a discount has been used as often as its limit allows
	ErrUsageLimitReached = errors.New("discount usage limit reached")

	// ErrMinOrderNotMet is returned when the cart total is below the discount's minimum order value
	ErrMinOrderNotMet = errors.New("minimum order value not met")

	// ErrNotApplicable is returned when none of the cart's categories are covered by the discount
	ErrNotApplicable = errors.New("discount not applicable to cart contents")
)

// MinOrderError carries the minimum a cart must reach for the discount to apply.
type MinOrderError struct {
	Required decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("%s: requires %s", ErrMinOrderNotMet, e.Required.StringFixed(2))
}

func (e *MinOrderError) Is(target error) bool {
	return target == ErrMinOrderNotMet
}
