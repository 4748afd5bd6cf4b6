package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

var _ echo.Validator = (*RequestValidator)(nil)

// NewRequestValidator builds a validator for DTO struct tags.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate checks the struct tags of i.
func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// validationMessage reports the first failed field in a readable form.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid payload"
	}
	first := errs[0]
	if first.Param() != "" {
		return first.Field() + " failed " + first.Tag() + "=" + first.Param()
	}
	return first.Field() + " failed " + first.Tag()
}
