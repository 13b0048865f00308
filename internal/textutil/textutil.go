// Package textutil provides text normalization utilities shared by the
// extractor, the fingerprint and the query layer.
package textutil

import (
	"regexp"
	"strings"
)

var (
	// \s in Go regexp is ASCII-only; \p{Zs} picks up the non-breaking and
	// ideographic spaces that &nbsp; and friends decode to.
	whitespaceRegex = regexp.MustCompile(`[\s\p{Zs}]+`)
	htmlTagRegex    = regexp.MustCompile(`<[^>]+>`)
)

// Normalize collapses any run of whitespace, Unicode spaces included, to a
// single space and trims leading/trailing whitespace. Empty input yields the
// empty string. Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// StripTags replaces HTML tags with a single space.
// Used before date parsing so that <br> separated fragments stay separated.
func StripTags(s string) string {
	return htmlTagRegex.ReplaceAllString(s, " ")
}
