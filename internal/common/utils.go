package common

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName folds a place name for substring matching: trimmed,
// lower-cased, diacritics stripped ("Gijón" -> "gijon").
func NormalizeName(s string) string {
	folded := strings.ToLower(strings.TrimSpace(s))
	out, _, err := transform.String(stripMarks, folded)
	if err != nil {
		return folded
	}
	return out
}

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
