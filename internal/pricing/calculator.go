// Package pricing turns cart line items and an optional active discount into
// a cost breakdown. Everything here is pure: the same inputs always produce
// the same Totals, so callers recompute on every cart or discount change
// instead of caching.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
)

var (
	// GSTRate is applied to the item subtotal.
	GSTRate = decimal.RequireFromString("0.05")

	// PlatformFee is charged on every order regardless of size.
	PlatformFee = decimal.RequireFromString("15.00")

	// DeliveryCharge is waived once the item subtotal reaches FreeDeliveryThreshold.
	DeliveryCharge = decimal.RequireFromString("40.00")

	// FreeDeliveryThreshold is inclusive: a subtotal of exactly this amount ships free.
	FreeDeliveryThreshold = decimal.RequireFromString("500.00")
)

var hundred = decimal.NewFromInt(100)

// ItemTotal sums price × quantity over all line items without intermediate rounding.
func ItemTotal(items []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// DiscountAmount computes what a discount takes off the given base amount.
// Percentage discounts are capped at maxDiscount when it is set; fixed
// discounts are returned as-is and may exceed the base. BOGO has no
// computable amount here and yields zero.
func DiscountAmount(kind model.DiscountKind, value decimal.Decimal, maxDiscount *decimal.Decimal, base decimal.Decimal) decimal.Decimal {
	switch kind {
	case model.DiscountPercentage:
		amount := base.Mul(value).Div(hundred)
		if maxDiscount != nil && amount.GreaterThan(*maxDiscount) {
			return *maxDiscount
		}
		return amount
	case model.DiscountFixed:
		return value
	default:
		return decimal.Zero
	}
}

// ComputeTotals builds the full cost breakdown. The final total is not
// clamped, so a large fixed discount can push it below zero.
func ComputeTotals(items []model.LineItem, active *model.ActiveDiscount) model.Totals {
	itemTotal := ItemTotal(items)

	delivery := DeliveryCharge
	if itemTotal.GreaterThanOrEqual(FreeDeliveryThreshold) {
		delivery = decimal.Zero
	}

	discount := decimal.Zero
	if active != nil {
		discount = DiscountAmount(active.Kind, active.Value, active.MaxDiscount, itemTotal)
	}

	gst := itemTotal.Mul(GSTRate)

	return model.Totals{
		ItemTotal:      itemTotal,
		GST:            gst,
		PlatformFee:    PlatformFee,
		DeliveryCharge: delivery,
		Discount:       discount,
		FinalTotal:     itemTotal.Add(gst).Add(PlatformFee).Add(delivery).Sub(discount),
	}
}
