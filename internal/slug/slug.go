package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Make creates a URL-friendly slug from a display name:
// "Vintage Denim Jacket!" -> "vintage-denim-jacket".
func Make(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

// WithSuffix appends a short discriminator, used when the plain slug is
// already taken.
func WithSuffix(base, suffix string) string {
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
