// Package rule contains the "re" capitalization rules shared by every
// delivery surface.
package rule

import (
	"bytes"
	"regexp"
	"strings"
)

// Rule rewrites each "re" followed by an ASCII letter into "Re" followed by
// the uppercased letter. Replacements never change the length of the input
// and their output never matches again, so applying a Rule is idempotent.
type Rule struct {
	name    string
	pattern *regexp.Regexp
}

var (
	// Anchored only matches "re" that starts a word. The boundary constrains
	// the left side only: "rest" matches just like "read".
	Anchored = newRule("anchored", `\bre([a-zA-Z])`)

	// Unanchored matches "re" anywhere, including mid-word ("prepare").
	Unanchored = newRule("unanchored", `re([a-zA-Z])`)
)

func newRule(name, pattern string) Rule {
	return Rule{
		name:    name,
		pattern: regexp.MustCompile(pattern),
	}
}

// Name identifies the rule variant in logs.
func (r Rule) Name() string { return r.name }

// Pattern returns the regular expression source of the rule.
func (r Rule) Pattern() string { return r.pattern.String() }

// Apply returns text with every match rewritten. Input without matches is
// returned unchanged.
func (r Rule) Apply(text string) string {
	return r.pattern.ReplaceAllStringFunc(text, recapitalize)
}

// ApplyBytes is the []byte equivalent of Apply.
func (r Rule) ApplyBytes(text []byte) []byte {
	return r.pattern.ReplaceAllFunc(text, recapitalizeBytes)
}

// Match reports whether Apply would change text.
func (r Rule) Match(text string) bool {
	return r.pattern.MatchString(text)
}

// Count returns the number of replacements Apply would make.
func (r Rule) Count(text string) int {
	return len(r.pattern.FindAllStringIndex(text, -1))
}

// recapitalize maps a three byte match "re?" to "Re?" with the trailing
// letter uppercased. Word boundaries are zero-width so anchored matches have
// the same shape.
func recapitalize(match string) string {
	return "Re" + strings.ToUpper(match[2:])
}

func recapitalizeBytes(match []byte) []byte {
	return append([]byte("Re"), bytes.ToUpper(match[2:])...)
}
