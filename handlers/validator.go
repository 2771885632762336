package handlers

import (
	"fmt"
	"strings"

	"github.com/LWS49/reading-list-api/service"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("isbn13", validateISBN13)
}

// validateISBN13 accepts any form that normalizes to 13 digits; hyphens and
// whitespace are ignored.
func validateISBN13(fl validator.FieldLevel) bool {
	_, ok := service.NormalizeISBN(fl.Field().String())
	return ok
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateStruct runs the tag validators and flattens the result into a
// machine-readable violation list for 400 responses.
func ValidateStruct(s any) []ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var out []ValidationError
	for _, fieldErr := range err.(validator.ValidationErrors) {
		field := fieldErr.Field()
		param := fieldErr.Param()

		var message string
		switch fieldErr.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, param)
		case "gt", "gte":
			message = fmt.Sprintf("%s must be positive", field)
		case "isbn13":
			message = fmt.Sprintf("%s must be a valid 13-digit ISBN", field)
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
		case "datetime":
			message = fmt.Sprintf("%s must be an RFC 3339 timestamp", field)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}

		fieldName := strings.ToLower(field[:1]) + field[1:]
		out = append(out, ValidationError{Field: fieldName, Message: message})
	}
	return out
}
