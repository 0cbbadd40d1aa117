package logger

import (
	"fmt"
	"strings"
)

// maxFieldRunes bounds transcripts and file names echoed into log lines.
const maxFieldRunes = 80

// SanitizeForLog escapes control characters so user-supplied text cannot
// forge log entries or drive the terminal. Printable Unicode is kept.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		default:
			if r < 32 || r == 127 {
				fmt.Fprintf(&result, "\\x%02x", r)
			} else {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}

// Truncate shortens s to n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Field sanitizes and truncates a user-supplied value for a log line.
func Field(s string) string {
	return SanitizeForLog(Truncate(s, maxFieldRunes))
}
