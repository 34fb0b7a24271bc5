package customer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Amélie" -> "Amelie").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a customer name for search (lowercase, no
// diacritics, collapsed whitespace). The duplicate resolver deliberately
// does NOT use this: its classification compares claimed names by exact
// equality.
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	return strings.Join(strings.Fields(name), " ")
}

// NameMatches reports whether a customer name matches a search query after
// normalization, by substring.
func NameMatches(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(NormalizeName(name), NormalizeName(query))
}
