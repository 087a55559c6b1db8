package lang

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Default represents the fallback language code used when no explicit language
// is configured. The value follows BCP 47 conventions.
const Default = "en"

var errEmptyCode = errors.New("language code cannot be empty")

// Normalize validates the provided language code and returns it in a
// canonicalised form (lowercase language, uppercase region). Underscores are
// accepted as separators since storefront locales are often stored as nb_NO.
func Normalize(code string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if trimmed == "" {
		return "", errEmptyCode
	}

	parts := strings.Split(trimmed, "-")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid language code %q", code)
	}

	language := strings.ToLower(parts[0])
	if len(language) < 2 || len(language) > 8 || !letters(language) {
		return "", fmt.Errorf("invalid language code %q", code)
	}

	if len(parts) == 1 {
		return language, nil
	}

	region := parts[1]
	if len(region) < 2 || len(region) > 3 || !letters(region) {
		return "", fmt.Errorf("invalid language region in %q", code)
	}

	return language + "-" + strings.ToUpper(region), nil
}

// Base returns the language part of a normalised code ("nb" for "nb-NO").
func Base(code string) string {
	if idx := strings.IndexByte(code, '-'); idx > 0 {
		return code[:idx]
	}
	return code
}

// FromAcceptLanguage picks the highest weighted tag of an Accept-Language
// header that normalises to language or language-region.
func FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return Default
	}
	for _, tag := range tags {
		if tag == language.Und {
			continue
		}
		if normalized, err := Normalize(tag.String()); err == nil {
			return normalized
		}
	}
	return Default
}

func letters(value string) bool {
	for _, r := range value {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
