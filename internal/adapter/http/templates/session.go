// Package templates holds the HTML views of the session status pages.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

type SegmentView struct {
	Number     int
	Status     string
	Transcript string
	Mode       string
	PreviewURL string
}

type SessionView struct {
	ID            string
	State         string
	StateLabel    string
	Style         string
	Mode          string
	OutputURL     string
	FailureReason string
	Terminal      bool
	Segments      []SegmentView
}

// htmlWriter keeps the first write error so views read top to bottom.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(`</title><style>`)
		h.raw(`body{font-family:system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;color:#222}`)
		h.raw(`table{border-collapse:collapse;width:100%}td,th{border-bottom:1px solid #ddd;padding:.4rem;text-align:left;vertical-align:top}`)
		h.raw(`.state{font-weight:600}.failed{color:#b00020}.done{color:#1b7f3b}`)
		h.raw(`</style></head><body>`)
		if h.err != nil {
			return h.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</body></html>`)
		return h.err
	})
}

// SessionPage is the full status page. It subscribes to the SSE stream and
// swaps the status fragment on every update.
func SessionPage(v SessionView, eventsURL string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<h1>Session <code>`)
		h.text(v.ID)
		h.raw(`</code></h1><div id="status">`)
		if h.err != nil {
			return h.err
		}
		if err := SessionStatus(v).Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</div>`)
		if !v.Terminal {
			h.raw(`<script>(function(){var es=new EventSource(`)
			h.raw(jsString(eventsURL))
			h.raw(`);es.addEventListener("status",function(e){document.getElementById("status").innerHTML=e.data;});`)
			h.raw(`es.addEventListener("done",function(){es.close();});})();</script>`)
		}
		return h.err
	})
	return layout("Session "+v.ID, body)
}

// SessionStatus is the fragment sent on the SSE stream.
func SessionStatus(v SessionView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		class := "state"
		switch v.State {
		case "COMPLETED":
			class += " done"
		case "FAILED":
			class += " failed"
		}
		h.rawf(`<p class="%s">`, class)
		h.text(v.StateLabel)
		h.raw(`</p>`)

		if v.Style != "" {
			h.raw(`<p>Style: `)
			h.text(v.Style)
			h.raw(` &middot; Mode: `)
			h.text(v.Mode)
			h.raw(`</p>`)
		}
		if v.FailureReason != "" {
			h.raw(`<p class="failed">`)
			h.text(v.FailureReason)
			h.raw(`</p>`)
		}
		if v.OutputURL != "" {
			h.raw(`<p><a href="`)
			h.text(v.OutputURL)
			h.raw(`">Download captioned video</a></p>`)
		}

		if len(v.Segments) > 0 {
			h.raw(`<table><thead><tr><th>#</th><th>Status</th><th>Mode</th><th>Transcript</th><th></th></tr></thead><tbody>`)
			for _, s := range v.Segments {
				h.rawf(`<tr><td>%d</td><td>`, s.Number)
				h.text(s.Status)
				h.raw(`</td><td>`)
				h.text(s.Mode)
				h.raw(`</td><td>`)
				h.text(s.Transcript)
				h.raw(`</td><td>`)
				if s.PreviewURL != "" {
					h.raw(`<a href="`)
					h.text(s.PreviewURL)
					h.raw(`">preview</a>`)
				}
				h.raw(`</td></tr>`)
			}
			h.raw(`</tbody></table>`)
		}
		return h.err
	})
}

func ErrorPage(code, message string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<h1>`)
		h.text(code)
		h.raw(`</h1><p>`)
		h.text(message)
		h.raw(`</p>`)
		return h.err
	})
	return layout(code, body)
}

// jsString quotes s as a JavaScript string literal safe inside a script tag.
func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "<", `\u003c`, ">", `\u003e`, "\n", `\n`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}
