package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxBaseBytes leaves room for a storage prefix within the usual 255 byte limit.
const maxBaseBytes = 200

// SanitizeFilename returns a single path element safe to store and to put
// in a Content-Disposition header. Unicode letters survive; separators,
// quotes and control characters become underscores.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 32 || r == 127 || r == utf8.RuneError:
			sb.WriteRune('_')
		case strings.ContainsRune(`"/\:*?<>|`, r):
			sb.WriteRune('_')
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}

	result := strings.Trim(strings.TrimSpace(sb.String()), ".")
	if strings.Trim(result, "_ ") == "" {
		return "video"
	}

	ext := filepath.Ext(result)
	base := strings.TrimSuffix(result, ext)
	if len(ext) > 16 {
		base, ext = result, ""
	}
	return truncateBytes(base, maxBaseBytes) + strings.ToLower(ext)
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ContentDisposition returns an attachment header value for name.
func ContentDisposition(name string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(name))
}
