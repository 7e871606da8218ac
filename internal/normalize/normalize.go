// Package normalize canonicalizes user-entered text before it is stored.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text returns s in NFC form with control characters removed, runs of
// whitespace collapsed to one space, and the ends trimmed.
func Text(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Username canonicalizes a display name.
func Username(s string) string {
	return Text(s)
}

// Title canonicalizes a label title.
func Title(s string) string {
	return Text(s)
}

// SearchKey folds s for accent- and case-insensitive matching:
// "Café Meeting" -> "cafe meeting".
func SearchKey(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return Text(s)
}
