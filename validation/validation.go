// Package validation collects field violations for 422 responses.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Violations maps a JSON field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Error lets Violations travel as an error.
func (v Violations) Error() string {
	parts := make([]string, 0, len(v))
	for f, code := range v {
		parts = append(parts, f+": "+code)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

var referencePattern = regexp.MustCompile(`^CONV-\d{4}-\d{3}$`)

// New returns a validator that reports JSON field names and knows the
// "convref" tag for convention references.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("convref", func(fl validator.FieldLevel) bool {
		return referencePattern.MatchString(fl.Field().String())
	})
	return v
}

// FromValidator converts validator errors into Violations keyed by field name.
// ok is false when err is not a validation error.
func FromValidator(err error) (Violations, bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, false
	}
	out := Violations{}
	for _, fe := range ve {
		out[fe.Field()] = code(fe.Tag())
	}
	return out, true
}

func code(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "convref":
		return "invalid_reference"
	case "oneof":
		return "invalid_value"
	case "min", "max":
		return "invalid_length"
	case "gtfield":
		return "must_be_after_start"
	default:
		return "invalid"
	}
}

// Required flags blank strings.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Length flags strings whose rune count is outside [min, max].
func Length(field, value string, minLen, maxLen int, v Violations) {
	if n := utf8.RuneCountInString(strings.TrimSpace(value)); n < minLen || n > maxLen {
		v[field] = "invalid_length"
	}
}

// NonNegativeDecimal flags amounts below zero.
func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

// PositiveDecimal flags amounts that are zero or below.
func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v[field] = "must_be_positive"
	}
}

// RangeDecimal flags amounts outside [minVal, maxVal].
func RangeDecimal(field string, val, minVal, maxVal decimal.Decimal, v Violations) {
	if val.LessThan(minVal) || val.GreaterThan(maxVal) {
		v[field] = "out_of_range"
	}
}
