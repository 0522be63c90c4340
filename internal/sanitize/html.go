package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML tags and returns plain text.
// Use for: event names.
func Text(input string) string {
	return StrictPolicy.Sanitize(input)
}

// PlainText strips markup like Text, then decodes the entities the policy
// escapes so "Rock & Roll" survives unchanged, and trims surrounding space.
func PlainText(input string) string {
	return strings.TrimSpace(html.UnescapeString(Text(input)))
}
