package otp

import (
	"html"
	"regexp"
	"strings"
)

var (
	// invisibleBlocks matches elements whose text is never rendered.
	invisibleBlocks = regexp.MustCompile(`(?is)<(style|script|head)\b[^>]*>.*?</(?:style|script|head)>`)

	// htmlTagPattern matches HTML tags for stripping.
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

	horizontalSpace = regexp.MustCompile(`[ \t\p{Zs}]+`)
)

// StripHTML replaces tags with a space and unescapes entities. Tags become
// spaces rather than nothing so that digits from adjacent cells are not
// glued into one run.
func StripHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") && !strings.Contains(s, "&") {
		return s
	}

	result := invisibleBlocks.ReplaceAllString(s, " ")
	result = htmlTagPattern.ReplaceAllString(result, " ")
	result = html.UnescapeString(result)
	result = horizontalSpace.ReplaceAllString(result, " ")

	return strings.TrimSpace(result)
}
