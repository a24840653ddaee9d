package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
)

var maxPercentage = decimal.NewFromInt(100)

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON name so error messages match the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Register custom "notblank" validator - rejects whitespace-only strings
	// This is used for fields like discount codes that must have meaningful content
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// Money fields are decimal.Decimal; numeric tags like gte=0 compare their float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	// A percentage value is only meaningful up to 100
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(model.ActiveDiscount)
		checkPercentage(sl, d.Kind, &d.Value)
	}, model.ActiveDiscount{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(model.DiscountRequest)
		checkPercentage(sl, d.Kind, d.Value)
	}, model.DiscountRequest{})

	return v
}

func checkPercentage(sl validator.StructLevel, kind model.DiscountKind, value *decimal.Decimal) {
	if kind == model.DiscountPercentage && value != nil && value.GreaterThan(maxPercentage) {
		sl.ReportError(*value, "value", "Value", "lte", "100")
	}
}
