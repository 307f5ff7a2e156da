package common

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation against v.
func Validate(v any) error {
	return validate.Struct(v)
}
