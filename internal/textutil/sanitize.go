package textutil

import (
	"regexp"
	"strings"
)

const maxFileNameRunes = 200

var (
	unsafeFileNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	dashOrSpaceRun      = regexp.MustCompile(`[-\s]+`)
)

// SafeFileName converts text into a filename component. Unsafe characters
// become "-", leading and trailing dots and spaces are dropped, and every run
// of dashes or whitespace collapses to a single "-". The result is capped at
// 200 characters and is "unnamed" when nothing survives.
func SafeFileName(text string) string {
	safe := unsafeFileNameChars.ReplaceAllString(text, "-")
	safe = strings.Trim(safe, ". ")
	safe = dashOrSpaceRun.ReplaceAllString(safe, "-")
	if r := []rune(safe); len(r) > maxFileNameRunes {
		safe = strings.TrimRight(string(r[:maxFileNameRunes]), "-")
	}
	if safe == "" {
		return "unnamed"
	}
	return safe
}
