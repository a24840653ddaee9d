package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// formatValidationError converts the first validator error into a client message.
// Field names are the JSON names registered by internal/validator.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()

			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
			case "min":
				return "invalid request: " + field + " must contain at least " + fe.Param() + " entry"
			case "gte":
				return "invalid request: " + field + " must be at least " + fe.Param()
			case "lte":
				return "invalid request: " + field + " must be at most " + fe.Param()
			case "oneof":
				return "invalid request: " + field + " must be one of " + fe.Param()
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}
