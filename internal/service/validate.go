package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/job-tracker/internal/apperror"
)

// validate is shared by every service. A *validator.Validate caches struct
// metadata and is safe for concurrent use, so one instance is enough.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names ("jobTitle") instead of Go ones ("JobTitle"),
	// so the "field" in an error response matches what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// validateStruct runs the struct's validate tags and converts the first
// failure into an apperror.ValidationFailed naming the offending field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("service: validating %T: %w", s, err)
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), validationMessage(fe))
}

// validationMessage returns a human-readable message for one failed tag.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "eqfield":
		return fe.Field() + " must match " + lowerFirst(fe.Param())
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "url", "http_url":
		return fe.Field() + " must be a valid URL"
	default:
		return fe.Field() + " is invalid"
	}
}

// lowerFirst turns the Go field name validator reports for eqfield params
// ("Password") into its JSON spelling ("password").
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
