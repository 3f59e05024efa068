package validator

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
)

const dateLayout = "2006-01-02"

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
//
// Custom tags:
//   - notblank: rejects whitespace-only strings
//   - userprefix: 4 letters or digits, case-insensitive
//   - couponcode: a full 14-character coupon code, case-insensitive
//   - dateonly: a YYYY-MM-DD calendar date
func New() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("notblank", stringRule(func(s string) bool {
		return strings.TrimSpace(s) != ""
	}))

	_ = v.RegisterValidation("userprefix", stringRule(func(s string) bool {
		_, err := codegen.BuildPrefix(s)
		return err == nil
	}))

	_ = v.RegisterValidation("couponcode", stringRule(func(s string) bool {
		return codegen.ValidateCode(codegen.Normalize(s)) == nil
	}))

	_ = v.RegisterValidation("dateonly", stringRule(func(s string) bool {
		_, err := time.Parse(dateLayout, s)
		return err == nil
	}))

	return v
}

// stringRule adapts a string predicate to a validator.Func.
// Non-string fields pass so other tags can handle them.
func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		str, isString := fl.Field().Interface().(string)
		if !isString {
			return true
		}
		return ok(str)
	}
}
