package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxTokenLength bounds identity and session tokens accepted from clients
const MaxTokenLength = 8192

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("opaque_token", validateOpaqueToken); err != nil {
		panic(fmt.Sprintf("failed to register opaque_token validator: %v", err))
	}
}

// validateOpaqueToken accepts printable ASCII without whitespace, which covers
// every compact JWS serialization
func validateOpaqueToken(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) > MaxTokenLength {
		return false
	}
	for _, r := range value {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Message turns a validator error into a client-facing sentence
func Message(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "Validation failed"
	}
	fe := validationErrors[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "opaque_token":
		return fmt.Sprintf("%s is not a well-formed token", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

