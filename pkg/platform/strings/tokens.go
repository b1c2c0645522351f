// Package strings normalizes free-text tokens such as skills and
// certification names, which arrive with inconsistent case and spacing.
package strings

import (
	"strings"
)

// Normalize lowercases, trims and collapses inner whitespace runs.
//
//	Normalize("  Wound   Care ") == "wound care"
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeAll normalizes each value, dropping empties and duplicates.
// Order of first occurrence is preserved.
func NormalizeAll(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := Normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}
	return result
}

// DedupeAndTrim removes duplicates and blanks, keeping case. Used for ids
// and permission strings where case is significant.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// Set is a normalized token set.
type Set map[string]struct{}

// NewSet builds a set from raw values.
func NewSet(values []string) Set {
	s := make(Set, len(values))
	for _, v := range NormalizeAll(values) {
		s[v] = struct{}{}
	}
	return s
}

func (s Set) Has(v string) bool {
	_, ok := s[Normalize(v)]
	return ok
}

// ContainsAll reports whether every wanted token is in the set. An empty
// wanted list is trivially satisfied.
func (s Set) ContainsAll(wanted []string) bool {
	for _, w := range wanted {
		if !s.Has(w) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one wanted token is in the set.
func (s Set) ContainsAny(wanted []string) bool {
	for _, w := range wanted {
		if s.Has(w) {
			return true
		}
	}
	return false
}

// Matched returns the wanted tokens present in the set, normalized.
func (s Set) Matched(wanted []string) []string {
	var out []string
	for _, w := range NormalizeAll(wanted) {
		if _, ok := s[w]; ok {
			out = append(out, w)
		}
	}
	return out
}
