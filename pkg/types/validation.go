package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type ValidationError struct {
	Errors []FieldError
}

func (v *ValidationError) Error() string {
	msgs := lo.Map(v.Errors, func(fe FieldError, _ int) string {
		return fe.Field + " " + fe.Message
	})
	return "validation failed: " + strings.Join(msgs, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks v against its validate struct tags and reports every failing field
// by its json name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	return &ValidationError{
		Errors: lo.Map(ve, func(fe validator.FieldError, _ int) FieldError {
			return FieldError{Field: fe.Field(), Message: describe(fe)}
		}),
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}
