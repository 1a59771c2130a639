package domain

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	hhmmExpr     = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Validator returns the shared struct validator with domain tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmmExpr.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Check validates a struct against its tags.
func Check(v any) error {
	return Validator().Struct(v)
}
