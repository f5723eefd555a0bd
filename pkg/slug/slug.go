// Package slug derives URL-safe article identifiers from free text.
package slug

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const separator = '-'

// Make lowercases title, folds accented letters to ASCII, collapses every run
// of characters outside [a-z0-9] into a single hyphen, trims hyphens at both
// ends and appends the disambiguator. It performs no I/O; uniqueness is left to
// the store.
func Make(title, disambiguator string) string {
	base := Base(title)
	suffix := Base(disambiguator)
	switch {
	case base == "":
		return suffix
	case suffix == "":
		return base
	default:
		return base + string(separator) + suffix
	}
}

// Base returns the normalised slug of text without any disambiguator.
func Base(text string) string {
	folded := fold(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteRune(separator)
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Disambiguator renders t at nanosecond resolution in base 36.
func Disambiguator(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 36)
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
