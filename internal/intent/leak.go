package intent

import "strings"

// toolCodePatterns mark free-text output that is actually an echoed tool
// invocation rather than a genuine answer. Matching strings against model
// output is inherently approximate; this is a safeguard, not a guarantee.
var toolCodePatterns = []string{
	"tool_code",
	"default_api.",
	"search_archives(",
	"browse_archives(",
	"print(default_api",
}

// LooksLikeToolCode reports whether text appears to be tool-call syntax
// leaked into a text response. Such text must never be shown to a user as
// a message.
func LooksLikeToolCode(text string) bool {
	for _, p := range toolCodePatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
