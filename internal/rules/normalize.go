package rules

import (
	"strings"
	"unicode"
)

// TrimSpace removes leading and trailing whitespace.
func TrimSpace(s string) string { return strings.TrimSpace(s) }

// Underscore converts internal whitespace runs to "_", keeping the " to " separator of
// between conditions intact.
func Underscore(s string) string {
	parts := strings.Split(s, betweenSeparator)
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(p), "_")
	}
	return strings.Join(parts, betweenSeparator)
}

// Lower lower-cases s.
func Lower(s string) string { return strings.ToLower(s) }

// Alnum removes characters outside letters, digits, '_', '-', ' ' and
// periods that belong to a number.
func Alnum(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		case r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1]):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeValue applies the full string normalization used when normalize_strings is
// enabled: trim, lower-case, whitespace to '_', and non-alphanumeric removal.
// Input cells are normalized the same way so they compare equal to normalized conditions.
func NormalizeValue(s string) string {
	return Alnum(Underscore(Lower(TrimSpace(s))))
}
