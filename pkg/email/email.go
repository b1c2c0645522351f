// Package email derives display names for notification greetings when a
// principal has no name on file.
package email

import (
	"strings"
	"unicode"
)

// DisplayName returns fullName when set, otherwise a name derived from the
// local part of address ("anna.keller@x.ch" -> "Anna Keller").
func DisplayName(fullName, address string) string {
	if n := strings.TrimSpace(fullName); n != "" {
		return n
	}
	first, last := DeriveNameFromEmail(address)
	if last == "" {
		return first
	}
	return first + " " + last
}

// DeriveNameFromEmail splits the local part on '.', '_', '-' and '+'.
// Falls back to "Colleague" when nothing usable remains.
func DeriveNameFromEmail(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Colleague", ""
	}

	first := capitalize(parts[0])
	last := ""
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}
	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
