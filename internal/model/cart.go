package model

import "github.com/shopspring/decimal"

// LineItem is a purchasable item in a cart.
type LineItem struct {
	ID       string          `json:"id" validate:"required,notblank"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int             `json:"quantity" validate:"gte=1"`
	Category string          `json:"category"`
}

// Totals is the cost breakdown of a cart.
type Totals struct {
	ItemTotal      decimal.Decimal `json:"itemTotal"`
	GST            decimal.Decimal `json:"gst"`
	PlatformFee    decimal.Decimal `json:"platformFee"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	Discount       decimal.Decimal `json:"discount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
}

// QuoteRequest is the DTO for POST /api/orders/quote. An empty cart is quoted
// like any other: fees apply to a zero item total.
type QuoteRequest struct {
	Items    []LineItem      `json:"items" validate:"dive"`
	Discount *ActiveDiscount `json:"discount"`
}
