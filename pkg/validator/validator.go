package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer *bluemonday.Policy

	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Init registers the custom rules on gin's binding validator.
func Init() {
	sanitizer = bluemonday.StrictPolicy()

	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomValidations(engine)
	}
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("currency", validateCurrency)
	v.RegisterValidation("reference", validateReference)
}

// SanitizeString strips markup from text that originates outside the
// application, such as provider error messages stored in order notes, and
// collapses it to a single line.
func SanitizeString(s string) string {
	policy := sanitizer
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	return NormalizeSpaces(strings.TrimSpace(policy.Sanitize(s)))
}

// ValidCurrency reports whether code is an upper-case ISO 4217 code.
func ValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// ValidReference reports whether value can be used as a provider reference
// (transaction id, merchant reference, session id).
func ValidReference(value string) bool {
	return referencePattern.MatchString(value)
}

func validateCurrency(fl validator.FieldLevel) bool {
	return ValidCurrency(fl.Field().String())
}

func validateReference(fl validator.FieldLevel) bool {
	return ValidReference(fl.Field().String())
}

func NormalizeSpaces(s string) string {
	return spacePattern.ReplaceAllString(s, " ")
}
