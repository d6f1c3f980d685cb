package textutil

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when a candidate supplies no locale preference.
const DefaultLocale = "en"

// NormalizeLocale canonicalises a BCP 47 language tag, falling back to
// DefaultLocale when the input is empty or unparseable.
func NormalizeLocale(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return DefaultLocale
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return DefaultLocale
	}
	return parsed.String()
}
