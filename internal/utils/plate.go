package utils

import "strings"

// NormalizePlate canonicalizes a license plate for storage and lookup:
// surrounding whitespace removed, inner spaces collapsed, uppercased.
// Dashes are kept so plates render the way drivers wrote them.
func NormalizePlate(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Join(strings.Fields(value), "")
	return strings.ToUpper(value)
}
