package domain

import (
	"regexp"
	"strings"
)

var slugExpr = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify derives the canonical project slug from a display name: lowercase,
// runs of non-alphanumeric characters collapse into single hyphens, and
// leading or trailing hyphens are trimmed.
func Slugify(value string) string {
	base := strings.ToLower(strings.TrimSpace(value))
	if base == "" {
		return ""
	}
	base = strings.ReplaceAll(base, "_", "-")
	base = slugExpr.ReplaceAllString(base, "-")
	for strings.Contains(base, "--") {
		base = strings.ReplaceAll(base, "--", "-")
	}
	return strings.Trim(base, "-")
}
