package documents

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"docchat-backend/internal/shared/util"
)

const maxNameLength = 255

var pdfSuffix = regexp.MustCompile(`(?i)\.pdf$`)

// StorageKey builds "<unix-millis>-<sanitized name>".
func StorageKey(now time.Time, originalName string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), util.SanitizeFileName(originalName))
}

// DisplayName strips a trailing ".pdf" (any case) and caps the length.
func DisplayName(originalName string) string {
	name := pdfSuffix.ReplaceAllString(originalName, "")
	if name == "" {
		name = originalName
	}
	if utf8.RuneCountInString(name) <= maxNameLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:maxNameLength])
}
