// Package otp finds one-time passcodes in message text.
//
// Extraction walks an ordered rule list, most specific first, over an
// ordered list of candidate texts. The candidate order wins over the rule
// order: a labeled code in the first candidate beats anything in a later
// one, and a bare digit run in the first candidate also beats a labeled
// code in a later one.
package otp

import (
	"fmt"
	"regexp"
	"strings"
)

// Strictness selects the rule set.
type Strictness string

const (
	// Strict accepts only 6-digit codes.
	Strict Strictness = "strict"

	// Loose accepts 4-8 digit codes, still preferring 6-digit runs.
	Loose Strictness = "loose"
)

// ParseStrictness maps a config value to a Strictness. Empty selects
// Strict.
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(strings.ToLower(strings.TrimSpace(s))) {
	case "", Strict:
		return Strict, nil
	case Loose:
		return Loose, nil
	default:
		return "", fmt.Errorf("unknown extractor strictness %q", s)
	}
}

// Rule is one pattern in the cascade. The first capture group is the code.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// labelPhrase matches the words that introduce a code in the mails this
// service reads.
const labelPhrase = `(?:验证码|校验码|动态码|确认码|安全码|` +
	`verification code|security code|one[- ]time (?:pass)?code|passcode|otp|code)`

func labeledRule(digits string) Rule {
	return Rule{
		Name: "labeled-" + digits,
		Pattern: regexp.MustCompile(`(?i)` + labelPhrase +
			`\s*(?:为|是|is)?\s*[:：]?\s*([0-9]{` + digits + `})(?:[^0-9]|$)`),
	}
}

var (
	ruleLabeled6    = labeledRule("6")
	ruleLabeled4to8 = labeledRule("4,8")
	ruleBare6       = Rule{Name: "bare-6", Pattern: regexp.MustCompile(`\b([0-9]{6})\b`)}
	ruleBare4to8    = Rule{Name: "bare-4-8", Pattern: regexp.MustCompile(`\b([0-9]{4,8})\b`)}
)

// rulesFor returns the cascade for s, most specific first.
func rulesFor(s Strictness) []Rule {
	if s == Loose {
		return []Rule{ruleLabeled4to8, ruleBare6, ruleBare4to8}
	}
	return []Rule{ruleLabeled6, ruleBare6}
}

// Extractor applies an ordered rule cascade to candidate texts.
type Extractor struct {
	rules []Rule
}

// NewExtractor returns an extractor using the rule set for s.
func NewExtractor(s Strictness) *Extractor {
	return &Extractor{rules: rulesFor(s)}
}

// Rules returns a copy of the cascade in evaluation order.
func (e *Extractor) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Extract returns the first code found. Candidates are tried in order and,
// within each candidate, rules are tried in order.
func (e *Extractor) Extract(candidates ...string) (string, bool) {
	for _, text := range candidates {
		if text == "" {
			continue
		}
		for _, rule := range e.rules {
			if m := rule.Pattern.FindStringSubmatch(text); m != nil {
				return m[1], true
			}
		}
	}
	return "", false
}

// ExtractFromBodies expands the two bodies with Candidates and runs Extract.
func (e *Extractor) ExtractFromBodies(text, html string) (string, bool) {
	return e.Extract(Candidates(text, html)...)
}

// Candidates returns the texts to search, in order: the plain body, its
// tag-stripped form when stripping changes anything, then the rendered
// text of the HTML body. Raw HTML is never a candidate, so digit runs in
// attributes such as colors and image paths cannot match.
func Candidates(text, html string) []string {
	out := make([]string, 0, 3)
	if strings.TrimSpace(text) != "" {
		out = append(out, text)
		if stripped := StripHTML(text); stripped != "" && stripped != text {
			out = append(out, stripped)
		}
	}
	if strings.TrimSpace(html) != "" {
		if rendered := StripHTML(html); rendered != "" {
			out = append(out, rendered)
		}
	}
	return out
}
