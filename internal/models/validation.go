package models

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

// NewValidator returns a validator with the custom tags used by the models:
// "username" accepts 3 to 50 letters, digits, dots, underscores or hyphens.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidationErrorFrom converts validator output into a *ValidationError for the
// first failing field.
func ValidationErrorFrom(err error) error {
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		reasons := make([]string, 0, len(ve))
		for _, fe := range ve {
			if fe.Field() == ve[0].Field() {
				reasons = append(reasons, describeFieldError(fe))
			}
		}
		return &ValidationError{Field: ve[0].Field(), Reasons: reasons}
	}

	return &ValidationError{Reasons: []string{err.Error()}}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "must be 3-50 characters of letters, digits, '.', '_' or '-'"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "uppercase":
		return "must be upper case"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
