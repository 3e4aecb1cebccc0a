// Package validation wraps go-playground/validator with the custom tags used
// by graph documents and computer configuration.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is the shared validator instance.
var Validate *validator.Validate

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
	keyPattern        = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)
)

func init() {
	Validate = validator.New()

	Validate.RegisterValidation("element_id", validateElementID)
	Validate.RegisterValidation("key_name", validateKeyName)

	// Report yaml/json field names rather than Go field names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"yaml", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every failed field of one struct.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct runs the tag rules on s and converts failures to ValidationErrors.
func ValidateStruct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Namespace(),
			Value:   fe.Value(),
			Message: message(fe),
		})
	}
	return out
}

// IsKeyName reports whether name is usable as a compute or global key.
func IsKeyName(name string) bool {
	return keyPattern.MatchString(name)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min", "gte":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "element_id":
		return "must be a valid element identifier (alphanumeric, underscore, dot, colon, hyphen)"
	case "key_name":
		return "must be a valid key name"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateElementID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return len(id) <= 256 && identifierPattern.MatchString(id)
}

func validateKeyName(fl validator.FieldLevel) bool {
	return IsKeyName(fl.Field().String())
}
