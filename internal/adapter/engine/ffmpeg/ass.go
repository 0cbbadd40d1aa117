package ffmpeg

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bnema/captioner/internal/domain"
)

const (
	defaultFont      = "Arial"
	defaultFontSize  = 48
	defaultPrimary   = "&H00FFFFFF"
	defaultOutline   = "&H00000000"
	defaultOutlineW  = 2
	defaultAlignment = 2
	defaultMarginV   = 60

	// Captions longer than this are cut even without punctuation.
	maxCueWords = 12
	// Used to time cues when the segment duration is unknown.
	fallbackCueMs = 1500
)

type cue struct {
	startMs int64
	endMs   int64
	text    string
}

// BuildASS renders a transcript as an ASS subtitle script. Cues are timed
// across durationMs in proportion to their length.
func BuildASS(style domain.Style, mode domain.CaptionMode, transcript string, durationMs int64, width, height int) string {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	b.WriteString(styleLine(style))
	b.WriteString("\n\n")

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range timeCues(splitCues(transcript, mode), durationMs) {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", assTime(c.startMs), assTime(c.endMs), c.text)
	}
	return b.String()
}

func styleLine(s domain.Style) string {
	font := orDefault(s.Font, defaultFont)
	size := s.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	outline := s.Outline
	if outline <= 0 {
		outline = defaultOutlineW
	}
	align := s.Alignment
	if align < 1 || align > 9 {
		align = defaultAlignment
	}
	marginV := s.MarginV
	if marginV <= 0 {
		marginV = defaultMarginV
	}
	bold := 0
	if s.Bold {
		bold = -1
	}
	return fmt.Sprintf("Style: Default,%s,%d,%s,&H000000FF,%s,&H64000000,%d,0,0,0,100,100,0,0,1,%d,0,%d,40,40,%d,1",
		font, size, orDefault(s.PrimaryColour, defaultPrimary), orDefault(s.OutlineColour, defaultOutline),
		bold, outline, align, marginV)
}

// splitCues cuts a transcript into sentences, or into single words in word mode.
func splitCues(transcript string, mode domain.CaptionMode) []string {
	words := strings.Fields(sanitizeCueText(transcript))
	if len(words) == 0 {
		return nil
	}
	if mode == domain.CaptionModeWord {
		return words
	}

	var cues []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			cues = append(cues, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, w := range words {
		current = append(current, w)
		if endsSentence(w) || len(current) >= maxCueWords {
			flush()
		}
	}
	flush()
	return cues
}

func endsSentence(word string) bool {
	r, _ := utf8.DecodeLastRuneInString(word)
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func timeCues(texts []string, durationMs int64) []cue {
	if len(texts) == 0 {
		return nil
	}
	if durationMs <= 0 {
		durationMs = int64(len(texts)) * fallbackCueMs
	}

	total := 0
	for _, t := range texts {
		total += cueWeight(t)
	}

	cues := make([]cue, len(texts))
	var start int64
	acc := 0
	for i, t := range texts {
		acc += cueWeight(t)
		end := durationMs * int64(acc) / int64(total)
		if i == len(texts)-1 {
			end = durationMs
		}
		cues[i] = cue{startMs: start, endMs: end, text: t}
		start = end
	}
	return cues
}

func cueWeight(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return max(n, 1)
}

// sanitizeCueText strips ASS override blocks and escapes.
func sanitizeCueText(s string) string {
	return strings.NewReplacer("{", "(", "}", ")", "\\", "/").Replace(s)
}

// assTime formats milliseconds as h:mm:ss.cc.
func assTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := ms / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, (cs/6000)%60, (cs/100)%60, cs%100)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
