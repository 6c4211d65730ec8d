// Package sanitize cleans text scraped from job boards before it is stored.
// This is part of the platform layer and contains no business logic.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Text strips HTML tags, decodes entities and collapses whitespace. Tags are
// stripped again after decoding so encoded markup cannot survive.
func Text(s string) string {
	out := tagPattern.ReplaceAllString(s, " ")
	out = html.UnescapeString(out)
	out = tagPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(out, " "))
}

// TextPtr sanitizes an optional field. Values that end up empty become nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := Text(*s)
	if out == "" {
		return nil
	}
	return &out
}
