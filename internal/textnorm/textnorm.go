// Package textnorm holds the text comparisons used to match template labels
// against OCR words.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// NFC returns s in Unicode normalization form C so that composed and
// decomposed forms of the same glyph compare equal.
func NFC(s string) string {
	return norm.NFC.String(s)
}

// Lower lower-cases s using language-neutral case mapping.
func Lower(s string) string {
	return lower.String(s)
}

// StripSpaces removes every ASCII space from s.
func StripSpaces(s string) string {
	return strings.ReplaceAll(NFC(s), " ", "")
}

// Lines splits a label on newlines and returns the trimmed non-empty lines.
func Lines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// EqualIgnoringSpaces reports whether a and b are identical once spaces are removed.
// Empty inputs never match.
func EqualIgnoringSpaces(a, b string) bool {
	a = StripSpaces(strings.TrimSpace(a))
	b = StripSpaces(b)
	return a != "" && a == b
}

// FirstChar returns the lower-cased first character of the trimmed text,
// or "" when there is none.
func FirstChar(s string) string {
	s = strings.TrimSpace(NFC(s))
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return Lower(s[:size])
}

var tokenReplacer = strings.NewReplacer(" ", "", "\n", "", "/", "", "-", "")

// Token normalises a word for prefix matching: lower-cased with spaces,
// newlines, slashes and hyphens removed.
func Token(s string) string {
	return tokenReplacer.Replace(Lower(NFC(s)))
}

// FirstToken returns the normalised first whitespace separated token of s.
// ok is false when s has no token at all; a token made only of stripped
// characters normalises to "" with ok true.
func FirstToken(s string) (token string, ok bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	return Token(fields[0]), true
}

// Prefix returns at most n leading characters of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// PrefixMatch reports whether a starts with the first n characters of b
// or b starts with the first n characters of a.
func PrefixMatch(a, b string, n int) bool {
	return strings.HasPrefix(a, Prefix(b, n)) || strings.HasPrefix(b, Prefix(a, n))
}
