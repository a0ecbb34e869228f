package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NormalizeCode canonicalizes short identifying codes (branch codes in
// admission numbers) to their stored upper-case form so that lookups and the
// rendered numbers agree regardless of how the caller typed them.
func NormalizeCode(s string) string {
	return strings.ToUpper(CleanString(s))
}
