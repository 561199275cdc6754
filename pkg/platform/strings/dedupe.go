// Package strings provides small slice and string helpers shared by handlers
// and services.
package strings

import (
	"strings"
)

// Dedupe removes repeated values keeping the first occurrence of each.
func Dedupe[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// DedupeAndTrim trims whitespace from each element, drops empty strings and
// removes duplicates. Order is preserved.
//
//	DedupeAndTrim([]string{"  a ", "b", "a", "", "  "}) // []string{"a", "b"}
func DedupeAndTrim(values []string) []string {
	return dedupeMapped(values, strings.TrimSpace)
}

// DedupeAndTrimUpper is DedupeAndTrim with upper-casing, for role names.
func DedupeAndTrimUpper(values []string) []string {
	return dedupeMapped(values, func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
}

func dedupeMapped(values []string, fn func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	mapped := make([]string, 0, len(values))
	for _, v := range values {
		if m := fn(v); m != "" {
			mapped = append(mapped, m)
		}
	}
	return Dedupe(mapped)
}
