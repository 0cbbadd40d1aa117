package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/captioner/internal/adapter/http/templates"
	"github.com/bnema/captioner/internal/service"
)

type SSEHandler struct {
	eventBus  *service.EventBus
	pipeline  Pipeline
	keepAlive time.Duration
}

func NewSSEHandler(eventBus *service.EventBus, pipeline Pipeline) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		pipeline:  pipeline,
		keepAlive: 15 * time.Second,
	}
}

// renderStatus renders the status fragment of a session and reports whether
// the session is terminal.
func (h *SSEHandler) renderStatus(ctx context.Context, id string) (string, bool, error) {
	sess, err := h.pipeline.Session(ctx, id)
	if err != nil {
		return "", false, err
	}
	segs, err := h.pipeline.Segments(ctx, id)
	if err != nil {
		return "", false, err
	}
	view := buildView(sess, segs)

	var buf bytes.Buffer
	if err := templates.SessionStatus(view).Render(ctx, &buf); err != nil {
		return "", false, err
	}
	return buf.String(), view.Terminal, nil
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendStatus writes the status fragment unless it matches the last one sent.
func sendStatus(w http.ResponseWriter, html, last string) string {
	if html == last {
		return last
	}
	sseWrite(w, "status", html)
	return html
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ctx := r.Context()

		// Subscribe first so no transition is missed between render and wait.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		html, terminal, err := h.renderStatus(ctx, id)
		if err != nil {
			status, msg := errorStatus(err)
			http.Error(w, msg, status)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		last := sendStatus(w, html, "")
		if terminal {
			sseWrite(w, "done", "")
			<-ctx.Done()
			return
		}

		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case _, ok := <-ch:
				if !ok {
					return
				}
				html, terminal, err := h.renderStatus(ctx, id)
				if err != nil {
					return
				}
				last = sendStatus(w, html, last)
				if terminal {
					sseWrite(w, "done", "")
					<-ctx.Done()
					return
				}
			}
		}
	}
}
