package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeResult(t *testing.T) {
	p := &ProbeResult{
		Format: ProbeFormat{Duration: "N/A"},
		Streams: []ProbeStream{
			{CodecType: "audio"},
			{CodecType: "video", Width: 1920, Height: 1080, Duration: "12.5"},
		},
	}

	assert.True(t, p.HasAudio())
	assert.Equal(t, 1920, p.VideoStream().Width)
	assert.Equal(t, int64(12500), p.DurationMs())

	p.Format.Duration = "3.25"
	assert.Equal(t, int64(3250), p.DurationMs())

	silent := &ProbeResult{Streams: []ProbeStream{{CodecType: "video"}}}
	assert.False(t, silent.HasAudio())
	assert.Nil(t, (&ProbeResult{}).VideoStream())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{59000, "0:59"},
		{61500, "1:01"},
		{3723000, "1:02:03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.ms))
	}
	assert.Equal(t, 0.0, ParseDuration("bogus"))
}
