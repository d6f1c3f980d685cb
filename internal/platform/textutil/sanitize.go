package textutil

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicyOnce sync.Once
	plainPolicy     *bluemonday.Policy
)

// Plain strips all markup from free-text input, leaving trimmed plain text.
// Used for candidate-supplied and reviewer-supplied fields before persistence.
func Plain(value string) string {
	plainPolicyOnce.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()
	})
	sanitized := plainPolicy.Sanitize(value)
	return strings.TrimSpace(html.UnescapeString(sanitized))
}
