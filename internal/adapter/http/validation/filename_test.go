package validation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "holiday.mp4", "holiday.mp4"},
		{"unicode kept", "vidéo été 日本.MP4", "vidéo été 日本.mp4"},
		{"path stripped", "../../etc/passwd.mp4", "passwd.mp4"},
		{"windows path stripped", `C:\Users\me\clip.mov`, "clip.mov"},
		{"quotes", `say "hi".mp4`, "say _hi_.mp4"},
		{"control chars", "a\nb\rc\x00.mp4", "a_b_c_.mp4"},
		{"tab replaced", "a\tb.mp4", "a_b.mp4"},
		{"non-breaking space", "a\u00a0b.mp4", "a b.mp4"},
		{"empty", "", "video"},
		{"dots only", "...", "video"},
		{"underscores only", "___", "video"},
		{"leading dot", ".hidden.mp4", "hidden.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("é", 300) + ".mp4"
	got := SanitizeFilename(long)

	assert.True(t, strings.HasSuffix(got, ".mp4"))
	assert.LessOrEqual(t, len(got), maxBaseBytes+len(".mp4"))
	assert.True(t, utf8.ValidString(got))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="clip.mp4"`, ContentDisposition("clip.mp4", false))
	assert.Equal(t, `inline; filename="a_b.mp4"`, ContentDisposition(`a"b.mp4`, true))
}
