package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStatus_EscapesUserText(t *testing.T) {
	var buf bytes.Buffer
	err := SessionStatus(SessionView{
		ID:         "s1",
		State:      "CHUNK_REVIEW",
		StateLabel: "waiting for segment review",
		Style:      "bold",
		Mode:       "word",
		Segments: []SegmentView{
			{Number: 1, Status: "PREVIEW_READY", Transcript: "<script>alert(1)</script>", Mode: "word", PreviewURL: "/api/sessions/s1/segments/1/preview"},
			{Number: 2, Status: "PREVIEW_PENDING", Transcript: "fine", Mode: "sentence"},
		},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "waiting for segment review")
	assert.Contains(t, html, `href="/api/sessions/s1/segments/1/preview"`)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(">preview</a>")))
}

func TestSessionStatus_Terminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SessionStatus(SessionView{
		State:         "FAILED",
		StateLabel:    "failed",
		FailureReason: "transcribing segment 2 failed after 3 attempts",
	}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `class="state failed"`)
	assert.Contains(t, buf.String(), "transcribing segment 2 failed after 3 attempts")

	buf.Reset()
	require.NoError(t, SessionStatus(SessionView{
		State:      "COMPLETED",
		StateLabel: "done",
		OutputURL:  "/api/sessions/s1/output",
	}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Download captioned video")
}

func TestSessionPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SessionPage(SessionView{ID: "s1", StateLabel: "transcribing"}, "/events/s1").Render(context.Background(), &buf))
	html := buf.String()
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, `new EventSource("/events/s1")`)
	assert.Contains(t, html, `<div id="status">`)

	buf.Reset()
	require.NoError(t, SessionPage(SessionView{ID: "s1", Terminal: true}, "/events/s1").Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "EventSource")
}

func TestErrorPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorPage("404", "Session not found").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "<h1>404</h1>")
	assert.Contains(t, buf.String(), "Session not found")
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"/events/a\"b\u003c/script\u003e"`, jsString(`/events/a"b</script>`))
}
