package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain transcript", "hello world", "hello world"},
		{"filename", "my-clip.mp4", "my-clip.mp4"},
		{"empty", "", ""},
		{"newline", "line1\nline2", "line1\\nline2"},
		{"forged entry", "ok\nERROR: injected", "ok\\nERROR: injected"},
		{"carriage return", "a\rb", "a\\rb"},
		{"tab", "a\tb", "a\\tb"},
		{"null byte", "before\x00after", "before\\x00after"},
		{"ansi colour", "text\x1b[31mred\x1b[0m", "text\\x1b[31mred\\x1b[0m"},
		{"delete", "a\x7fb", "a\\x7fb"},
		{"accents kept", "café à la crème", "café à la crème"},
		{"cyrillic kept", "привет мир", "привет мир"},
		{"emoji kept", "🎬 take 2", "🎬 take 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForLog(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héll...", Truncate("héllo wörld", 4))
	assert.Equal(t, "keep", Truncate("keep", 0))
}

func TestField(t *testing.T) {
	long := strings.Repeat("é", maxFieldRunes+20) + "\n"
	got := Field(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.NotContains(t, got, "\n")
	assert.Equal(t, maxFieldRunes+3, len([]rune(got)))

	assert.Equal(t, "a\\nb", Field("a\nb"))
}
