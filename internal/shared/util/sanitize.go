package util

import (
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFileName replaces every character outside [a-zA-Z0-9.-] with '_'.
// Path separators never survive, so the result is safe as a flat key.
func SanitizeFileName(name string) string {
	s := unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if s == "" || strings.Trim(s, ".") == "" {
		return "file"
	}
	return s
}
