package utils

import "strings"

// PickFirstNonEmpty picks the first value that is non-empty after trimming
// whitespace. If all values are empty, returns the empty string.
func PickFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
