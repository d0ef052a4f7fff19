package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Posts and replies are plain text; any markup is stripped before it reaches the backend.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML from user input and trims surrounding space.
func Sanitize(input string) string {
	// StrictPolicy escapes what it keeps; the backend expects raw text.
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(input)))
}
