package videos

import (
	"regexp"
	"strings"
)

const (
	videoExtension    = ".mp4"
	maxFilenameLength = 100
	lastResortName    = "video"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)
	repeatedWhitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename converts a display title into a filesystem-safe .mp4 name.
// Only word characters, whitespace and hyphens survive, so the result never
// contains path separators or control characters. An absent or fully stripped
// title falls back to fallbackID.
func SanitizeFilename(title, fallbackID string) string {
	base := cleanFilenameBase(title)
	if base == "" {
		base = cleanFilenameBase(fallbackID)
	}
	if base == "" {
		base = lastResortName
	}

	return base + videoExtension
}

// cleanFilenameBase only ever yields ASCII, so truncating by bytes is safe.
func cleanFilenameBase(s string) string {
	base := unsafeFilenameChars.ReplaceAllString(s, "")
	base = repeatedWhitespace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)
	if len(base) > maxFilenameLength {
		base = strings.TrimSpace(base[:maxFilenameLength])
	}
	return base
}
