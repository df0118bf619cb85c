// Package utils provides shared utilities for text handling and logging.
package utils

import "unicode/utf8"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged. Truncation never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	cut := Head(s, maxLen)
	if len(cut) == len(s) {
		return s
	}
	return cut + "..."
}

// Head returns the first maxLen characters (runes) of s. If maxLen is 0 or negative,
// or s is shorter, s is returned unchanged.
func Head(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i]
		}
		n++
	}
	return s
}
