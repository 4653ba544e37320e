package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonMatchChars = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	lowerCaser    = cases.Lower(language.Vietnamese)
)

// Fold strips Vietnamese diacritics: tone and vowel marks are removed and
// đ/Đ become d/D. Other characters pass through unchanged.
func Fold(value string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			switch r {
			case 'đ':
				return 'd'
			case 'Đ':
				return 'D'
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// Lower lowercases with Vietnamese casing rules.
func Lower(value string) string {
	return lowerCaser.String(value)
}

// NormalizeForMatch lowercases, folds diacritics, drops everything outside
// [a-z0-9] and whitespace, and collapses whitespace to single spaces.
func NormalizeForMatch(value string) string {
	if value == "" {
		return ""
	}
	folded := Fold(Lower(value))
	folded = nonMatchChars.ReplaceAllString(folded, "")
	return CollapseSpaces(folded)
}

// CollapseSpaces replaces whitespace runs with one space and trims the ends.
func CollapseSpaces(value string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " "))
}
