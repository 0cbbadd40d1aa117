package validation

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pad(magic []byte) []byte {
	out := make([]byte, 512)
	copy(out, magic)
	return out
}

func TestDetectVideo(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		mime    string
		ext     string
		allowed bool
	}{
		{"mp4 isom", pad([]byte("\x00\x00\x00\x18ftypisom")), "video/mp4", ".mp4", true},
		{"mp4 unknown brand", pad([]byte("\x00\x00\x00\x18ftypdash")), "video/mp4", ".mp4", true},
		{"quicktime", pad([]byte("\x00\x00\x00\x14ftypqt  ")), "video/quicktime", ".mov", true},
		{"webm", pad([]byte("\x1a\x45\xdf\xa3\x9f\x42\x86\x81\x01webm")), "video/webm", ".webm", true},
		{"matroska", pad([]byte("\x1a\x45\xdf\xa3\xa3\x42\x82\x88matroska")), "video/x-matroska", ".mkv", true},
		{"avi", pad([]byte("RIFF\x00\x00\x00\x00AVI LIST")), "video/x-msvideo", ".avi", true},
		{"flv", pad([]byte("FLV\x01\x05")), "video/x-flv", ".flv", true},
		{"m4a audio", pad([]byte("\x00\x00\x00\x18ftypM4A ")), "application/octet-stream", "", false},
		{"png", pad([]byte("\x89PNG\r\n\x1a\n")), "image/png", "", false},
		{"html", []byte("<!DOCTYPE html><html><body></body></html>"), "text/html; charset=utf-8", "", false},
		{"exe", pad([]byte{0x4D, 0x5A, 0x90, 0x00}), "application/octet-stream", "", false},
		{"short", []byte("FLV\x01"), "video/x-flv", ".flv", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, ext, err := DetectVideo(bytes.NewReader(tt.data))
			assert.Equal(t, tt.mime, mime)
			assert.Equal(t, tt.ext, ext)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotVideo)
			}
		})
	}
}

func TestDetectVideo_Empty(t *testing.T) {
	_, _, err := DetectVideo(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrNotVideo)
}

func TestDetectVideo_Rewinds(t *testing.T) {
	data := pad([]byte("\x00\x00\x00\x18ftypisom"))
	r := bytes.NewReader(data)

	_, _, err := DetectVideo(r)
	require.NoError(t, err)

	all, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, all)
}
