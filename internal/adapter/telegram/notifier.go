package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
)

// Notify queues an update for delivery. It never blocks: the orchestrator
// calls it while holding a session lane.
func (a *Adapter) Notify(_ context.Context, u port.Update) {
	if u.Session == nil {
		return
	}
	if _, ok := chatForSession(u.Session.ID); !ok {
		return
	}
	select {
	case a.outbox <- u:
	default:
		logger.Warn.Printf("telegram: outbox full, dropping update for %s", u.Session.ID)
	}
}

func (a *Adapter) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-a.outbox:
			chatID, _ := chatForSession(u.Session.ID)
			for _, msg := range a.messagesFor(chatID, u) {
				a.send(msg)
			}
		}
	}
}

// messagesFor builds the chat messages for an update. A state is announced
// once per entry and a preview once per rendered file.
func (a *Adapter) messagesFor(chatID int64, u port.Update) []tgbotapi.Chattable {
	a.mu.Lock()
	defer a.mu.Unlock()

	sess := u.Session
	var out []tgbotapi.Chattable

	if seg := u.Segment; seg != nil && seg.Status == domain.SegmentPreviewReady && seg.PreviewRef != "" {
		sent := a.previews[sess.ID]
		if sent == nil {
			sent = make(map[string]string)
			a.previews[sess.ID] = sent
		}
		if sent[seg.ID] != seg.PreviewRef {
			sent[seg.ID] = seg.PreviewRef
			video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(seg.PreviewRef))
			video.Caption = truncateCaption(fmt.Sprintf("Segment %d preview:\n%s", seg.Index+1, seg.Transcript()))
			out = append(out, video)
		}
	}

	if a.states[sess.ID] == sess.State {
		return out
	}
	a.states[sess.ID] = sess.State
	if sess.IsTerminal() {
		delete(a.states, sess.ID)
		delete(a.previews, sess.ID)
	}

	switch {
	case sess.State == domain.SessionCompleted && sess.OutputRef != "":
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(sess.OutputRef))
		video.Caption = "Your captioned video is ready."
		out = append(out, video)
	default:
		if text := a.stateText(sess); text != "" {
			for _, part := range splitMessage(text) {
				out = append(out, tgbotapi.NewMessage(chatID, part))
			}
		}
	}
	return out
}

func (a *Adapter) stateText(sess *domain.Session) string {
	switch sess.State {
	case domain.SessionUploading:
		return "Got your video. Splitting it into segments..."
	case domain.SessionTranscribing:
		return "Transcribing segments..."
	case domain.SessionStyleSelection:
		return "Transcription done. Pick a caption style with /style <id>.\n\n" + a.styleList()
	case domain.SessionGeneratingPreviews:
		return fmt.Sprintf("Rendering previews with the %s style...", sess.CaptionStyle)
	case domain.SessionChunkReview:
		return "Previews are ready. Review each segment with /approve <n>, /edit <n> <text>, /convert <n> <type> or /mode <word|sentence> [n]."
	case domain.SessionRendering:
		return "All segments approved. Rendering the final video..."
	case domain.SessionCompleted:
		return "Your captioned video is ready."
	case domain.SessionFailed:
		return fmt.Sprintf("Captioning failed: %s\nSend a new video to try again.", sess.FailureReason)
	}
	return ""
}

func truncateCaption(s string) string {
	r := []rune(s)
	if len(r) <= maxCaption {
		return s
	}
	return string(r[:maxCaption-3]) + "..."
}
