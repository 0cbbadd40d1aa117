// Package export writes session transcripts to Word documents.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/bnema/captioner/internal/domain"
)

const (
	fontName  = "Arial"
	fontSize  = 11
	titleSize = 16
)

var ErrNoTranscript = errors.New("no segment has been transcribed yet")

// HasTranscript reports whether at least one segment has been transcribed.
func HasTranscript(segs []*domain.Segment) bool {
	for _, seg := range segs {
		if seg.Status.AtLeast(domain.SegmentTranscribed) {
			return true
		}
	}
	return false
}

// WriteDocx writes the session transcript to path, one paragraph per segment
// with its position in the video. Edited and converted text wins over the
// raw transcript.
func WriteDocx(path string, sess *domain.Session, segs []*domain.Segment) error {
	if !HasTranscript(segs) {
		return ErrNoTranscript
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	addRun(doc.AddParagraph(""), "Transcript "+sess.ID, true, titleSize)
	addRun(doc.AddParagraph(""), summary(sess), false, fontSize)
	doc.AddParagraph("")

	for _, seg := range segs {
		p := doc.AddParagraph("")
		addRun(p, fmt.Sprintf("%d. [%s - %s] ", seg.Index+1,
			domain.FormatDuration(seg.StartMs), domain.FormatDuration(seg.EndMs)), true, fontSize)
		addRun(p, segmentText(seg), false, fontSize)
	}

	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func summary(sess *domain.Session) string {
	parts := []string{"Status: " + sess.State.Label()}
	if sess.CaptionStyle != "" {
		parts = append(parts, "style: "+sess.CaptionStyle)
	}
	parts = append(parts, "mode: "+string(sess.CaptionMode))
	return strings.Join(parts, ", ")
}

func segmentText(seg *domain.Segment) string {
	if !seg.Status.AtLeast(domain.SegmentTranscribed) {
		return "(not transcribed yet)"
	}
	if text := strings.TrimSpace(seg.Transcript()); text != "" {
		return text
	}
	return "(no speech)"
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
