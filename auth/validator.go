package auth

import (
	"unicode"

	"my-chat-backend/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Credentials are the fields needed to seed an account.
type Credentials struct {
	FullName string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

func ValidateCredentials(c Credentials) error {
	if err := validate.Struct(c); err != nil {
		return errors.InvalidArgument(err)
	}
	if !isPasswordComplex(c.Password) {
		return errors.ErrWeakPassword
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
