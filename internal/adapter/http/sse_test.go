package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
	"github.com/bnema/captioner/internal/service"
)

func TestSendStatus_SkipsUnchangedFragments(t *testing.T) {
	first := httptest.NewRecorder()
	last := sendStatus(first, "<p>one</p>", "")
	assert.Equal(t, "<p>one</p>", last)
	assert.Equal(t, 1, strings.Count(first.Body.String(), "event: status"))

	second := httptest.NewRecorder()
	last = sendStatus(second, "<p>one</p>", last)
	assert.Equal(t, "<p>one</p>", last)
	assert.Empty(t, second.Body.String())

	third := httptest.NewRecorder()
	last = sendStatus(third, "<p>two</p>", last)
	assert.Equal(t, "<p>two</p>", last)
	assert.Contains(t, third.Body.String(), "data: <p>two</p>")
}

func TestSSEWrite_MultiLine(t *testing.T) {
	rec := httptest.NewRecorder()
	sseWrite(rec, "status", "a\nb")
	assert.Equal(t, "event: status\ndata: a\ndata: b\n\n", rec.Body.String())
}

// readEvent reads lines until the named event has been fully received.
func readEvent(t *testing.T, r *bufio.Reader, name string) string {
	t.Helper()
	var data strings.Builder
	found := false
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "event: "+name:
			found = true
		case found && strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
		case found && line == "":
			return data.String()
		}
	}
}

func TestEvents_StreamsUntilTerminal(t *testing.T) {
	pipeline := newFakePipeline()
	sess, segs := reviewSession("s1")
	pipeline.put(sess, segs...)
	bus := service.NewEventBus()
	s := NewServer(pipeline, bus, nil, Config{})
	t.Cleanup(s.Close)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/s1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.Contains(t, readEvent(t, r, "status"), "waiting for segment review")

	done := sess.Clone()
	done.State = domain.SessionCompleted
	done.OutputRef = "/out/s1.mp4"
	pipeline.put(done, segs...)
	bus.Publish("s1", port.Update{Session: done})

	assert.Contains(t, readEvent(t, r, "status"), "Download captioned video")
	readEvent(t, r, "done")
}

func TestEvents_UnknownSession(t *testing.T) {
	s := newTestServer(t, newFakePipeline(), nil, Config{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/events/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
