// Package validation runs struct-tag validation and converts failures into
// VALIDATION errors that list every violated rule.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Kai-project-00/clipgo/internal/errors"
)

var (
	categoryNamePattern = regexp.MustCompile(`^[\p{L}\p{N}\s\-_]+$`)
	hexColorPattern     = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Validator wraps go-playground/validator with ClipGo's custom rules.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for the ClipGo domain.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "catname", func(fl validator.FieldLevel) bool {
		return categoryNamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "hexcolor6", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Validate validates s and returns a VALIDATION error naming entity on failure.
func (v *Validator) Validate(entity string, s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !stderrors.As(err, &validationErrs) {
		return errors.NewInternal(err)
	}

	violations := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		violations = append(violations, e.Field()+" "+friendlyMessage(e))
	}
	sort.Strings(violations)
	return errors.NewValidation(entity, violations)
}

var std = New()

// Struct validates s with the shared validator.
func Struct(entity string, s any) error {
	return std.Validate(entity, s)
}

func friendlyMessage(e validator.FieldError) string {
	unit := "characters"
	if k := e.Kind(); k == reflect.Slice || k == reflect.Array || k == reflect.Map {
		unit = "items"
	}

	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if isNumber(e.Kind()) {
			return "must be at least " + e.Param()
		}
		return fmt.Sprintf("must be at least %s %s", e.Param(), unit)
	case "max":
		if isNumber(e.Kind()) {
			return "must be at most " + e.Param()
		}
		return fmt.Sprintf("must not exceed %s %s", e.Param(), unit)
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "catname":
		return "may only contain letters, digits, spaces, hyphens and underscores"
	case "hexcolor6":
		return "must be a #RRGGBB hex color"
	case "lowercase":
		return "must be lowercase"
	default:
		return "is invalid"
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
