package document

import (
	"strings"
	"unicode"
)

// Slugify lowercases name and collapses any run of non-alphanumeric
// characters into a single hyphen, yielding a URL-friendly identifier
// ("Meeting Notes (Q3)" -> "meeting-notes-q3").
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
