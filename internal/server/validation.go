package server

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var canonicalPhone = regexp.MustCompile(`^\+1\d{10}$`)

// RequestValidator wraps go-playground validator with the relay's rules
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterValidation("us_phone", validateUSPhone)
	return &RequestValidator{validate: v}
}

// Validate validates a struct
func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}

// validateUSPhone accepts canonical +1 numbers only (+15551234567)
func validateUSPhone(fl validator.FieldLevel) bool {
	return canonicalPhone.MatchString(fl.Field().String())
}
