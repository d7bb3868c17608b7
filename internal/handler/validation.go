package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// RegisterValidations adds the request tags handlers rely on beyond the validator builtins.
//
// maxbytes limits a string by its encoded length, where max counts runes.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("maxbytes", maxBytes)
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
