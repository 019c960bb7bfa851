package gateway

import (
	"regexp"
	"strings"
)

var (
	leadingFenceRegex  = regexp.MustCompile("^```[A-Za-z0-9_+#.-]*") // Opening fence with optional language tag.
	trailingFenceRegex = regexp.MustCompile("```$")                   // Closing fence.
)

// Sanitize extracts the most plausible JSON object from a raw model response.
// It trims whitespace, strips markdown fences, and when the text contains a
// '{' before a later '}' it keeps only that span, dropping commentary the
// model added around the object. Anything else is returned as is and left
// for the parser to reject. Sanitize is idempotent.
func Sanitize(raw string) string {
	s := stripFences(raw)

	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first >= 0 && last > first {
		return s[first : last+1]
	}
	return s
}

func stripFences(s string) string {
	for {
		s = strings.TrimSpace(s)
		stripped := leadingFenceRegex.ReplaceAllString(s, "")
		stripped = trailingFenceRegex.ReplaceAllString(stripped, "")
		if stripped == s {
			return s
		}
		s = stripped
	}
}
