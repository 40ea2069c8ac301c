package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// New creates a new validator instance with the engine's custom field tags
// registered.
func New() *validator.Validate {
	valid := validator.New()
	if err := RegisterResourceNameValidation(valid); err != nil {
		panic(fmt.Sprintf("validator initialization; error: %s", err))
	}
	if err := RegisterModIdValidation(valid); err != nil {
		panic(fmt.Sprintf("validator initialization; error: %s", err))
	}
	if err := RegisterNoSpaceValidation(valid); err != nil {
		panic(fmt.Sprintf("validator initialization; error: %s", err))
	}
	return valid
}

// RegisterResourceNameValidation registers the "resourcename" field
// validator, matching cluster and server names per §3: `[A-Za-z0-9._-]{1,64}`.
func RegisterResourceNameValidation(validator *validator.Validate) error {
	return validator.RegisterValidation("resourcename", resourceName)
}

var resourceNameRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

func resourceName(fl validator.FieldLevel) bool {
	return resourceNameRE.MatchString(fl.Field().String())
}

// RegisterModIdValidation registers the "modid" field validator: a ModId is
// a non-empty string of decimal digits (§3).
func RegisterModIdValidation(validator *validator.Validate) error {
	return validator.RegisterValidation("modid", modID)
}

var modIDRE = regexp.MustCompile(`^[0-9]+$`)

func modID(fl validator.FieldLevel) bool {
	return modIDRE.MatchString(fl.Field().String())
}

// RegisterNoSpaceValidation registers the "nospace" field validator used on
// any value destined for the `?`-delimited start.bat compound argument,
// which has no escape sequence for spaces (§4.3).
func RegisterNoSpaceValidation(validator *validator.Validate) error {
	return validator.RegisterValidation("nospace", noSpace)
}

var spaceRE = regexp.MustCompile(`\s`)

func noSpace(fl validator.FieldLevel) bool {
	return !spaceRE.MatchString(fl.Field().String())
}
