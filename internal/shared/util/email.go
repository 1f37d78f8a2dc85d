package util

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// ValidEmail applies the same "email" rule gin uses when binding forms.
func ValidEmail(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}
