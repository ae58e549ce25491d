package common

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens a binding error into a per-field message map so
// validation failures reach the caller as {"errors": {field: msg}}.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				out[field] = "This field is required."
			case "min":
				out[field] = "Value is too short."
			case "max":
				out[field] = "Value is too long."
			case "email":
				out[field] = "Invalid email format."
			default:
				out[field] = "Invalid value."
			}
		}
		return out
	}

	out["non_field_errors"] = "Invalid input."
	return out
}
