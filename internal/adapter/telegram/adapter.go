package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/bnema/captioner/internal/adapter/export"
	"github.com/bnema/captioner/internal/adapter/http/validation"
	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
	"github.com/bnema/captioner/internal/service"
)

const (
	maxTelegramMessage = 4096
	maxCaption         = 1024
	// Bot API file downloads are capped at 20 MB.
	maxBotDownloadMB = 20
	outboxSize       = 128
)

var errTooLarge = errors.New("file too large")

// botClient is the subset of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Pipeline interface {
	SubmitVideo(ctx context.Context, req service.SubmitRequest) (*domain.Session, error)
	ApplyUserEvent(ctx context.Context, sessionID string, ev domain.UserEvent) error
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Segments(ctx context.Context, sessionID string) ([]*domain.Segment, error)
}

type Config struct {
	Token       string
	UploadDir   string
	MaxUploadMB int
}

// Adapter maps chat commands and uploads to pipeline calls and delivers
// session updates back to the chat. One session is bound to each chat.
type Adapter struct {
	bot        botClient
	styles     port.StyleCatalog
	cfg        Config
	httpClient *http.Client
	outbox     chan port.Update

	mu       sync.Mutex
	states   map[string]domain.SessionState
	previews map[string]map[string]string
}

var _ port.Notifier = (*Adapter)(nil)

func New(cfg Config, styles port.StyleCatalog) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	logger.Info.Printf("telegram bot authorized as @%s", bot.Self.UserName)
	return newAdapter(bot, cfg, styles), nil
}

func newAdapter(bot botClient, cfg Config, styles port.StyleCatalog) *Adapter {
	if cfg.MaxUploadMB <= 0 || cfg.MaxUploadMB > maxBotDownloadMB {
		cfg.MaxUploadMB = maxBotDownloadMB
	}
	return &Adapter{
		bot:        bot,
		styles:     styles,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		outbox:     make(chan port.Update, outboxSize),
		states:     make(map[string]domain.SessionState),
		previews:   make(map[string]map[string]string),
	}
}

// Run long-polls for updates until ctx is cancelled, then waits for
// in-progress downloads and stops delivering notifications.
func (a *Adapter) Run(ctx context.Context, pipeline Pipeline) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.deliver(ctx)
	}()
	defer wg.Wait()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			msg := update.Message
			if isUpload(msg) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					a.handleUpload(ctx, pipeline, msg)
				}()
				continue
			}
			a.handleMessage(ctx, pipeline, msg)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func isUpload(msg *tgbotapi.Message) bool {
	return msg.Video != nil || (msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "video/"))
}

func (a *Adapter) handleMessage(ctx context.Context, pipeline Pipeline, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !msg.IsCommand() {
		a.sendText(chatID, "Send a video to caption, or /help for commands.")
		return
	}

	sessionID := sessionIDForChat(chatID)
	cmd, err := parseCommand(sessionID, msg.Command(), msg.CommandArguments())
	if err != nil {
		a.sendText(chatID, userError(err))
		return
	}

	switch cmd.query {
	case queryHelp:
		a.sendText(chatID, helpText)
		return
	case queryStyles:
		a.sendText(chatID, a.styleList())
		return
	case queryStatus, querySegments:
		sess, err := pipeline.Session(ctx, sessionID)
		if err != nil {
			a.sendText(chatID, userError(err))
			return
		}
		if cmd.query == queryStatus {
			a.sendText(chatID, statusText(sess))
			return
		}
		segs, err := pipeline.Segments(ctx, sessionID)
		if err != nil {
			a.sendText(chatID, userError(err))
			return
		}
		a.sendText(chatID, segmentsText(sess, segs))
		return
	case queryTranscript:
		a.sendTranscript(ctx, pipeline, chatID, sessionID)
		return
	}

	for _, ev := range cmd.events {
		if err := pipeline.ApplyUserEvent(ctx, sessionID, ev); err != nil {
			a.sendText(chatID, userError(err))
			return
		}
		if ack := ackText(sessionID, ev); ack != "" {
			a.sendText(chatID, ack)
		}
	}
}

// sendTranscript exports the session transcript to a temporary docx and
// sends it as a document.
func (a *Adapter) sendTranscript(ctx context.Context, pipeline Pipeline, chatID int64, sessionID string) {
	sess, err := pipeline.Session(ctx, sessionID)
	if err != nil {
		a.sendText(chatID, userError(err))
		return
	}
	segs, err := pipeline.Segments(ctx, sessionID)
	if err != nil {
		a.sendText(chatID, userError(err))
		return
	}
	if !export.HasTranscript(segs) {
		a.sendText(chatID, "No transcript yet.")
		return
	}

	dir, err := os.MkdirTemp("", "captioner-tg-*")
	if err != nil {
		a.sendText(chatID, userError(err))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, sessionID+"_transcript.docx")
	if err := export.WriteDocx(path, sess, segs); err != nil {
		a.sendText(chatID, userError(err))
		return
	}
	a.send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path)))
}

func (a *Adapter) handleUpload(ctx context.Context, pipeline Pipeline, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	fileID, name, size := "", "", 0
	if msg.Video != nil {
		fileID, name, size = msg.Video.FileID, msg.Video.FileName, msg.Video.FileSize
	} else {
		fileID, name, size = msg.Document.FileID, msg.Document.FileName, msg.Document.FileSize
	}
	if size > a.cfg.MaxUploadMB<<20 {
		a.sendText(chatID, fmt.Sprintf("That video is too large. The limit is %d MB.", a.cfg.MaxUploadMB))
		return
	}

	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		logger.Error.Printf("telegram: resolve file for chat %d: %v", chatID, err)
		a.sendText(chatID, "Could not fetch that file, please try again.")
		return
	}
	path, err := a.download(ctx, url, name)
	if err != nil {
		switch {
		case errors.Is(err, errTooLarge):
			a.sendText(chatID, fmt.Sprintf("That video is too large. The limit is %d MB.", a.cfg.MaxUploadMB))
		case errors.Is(err, validation.ErrNotVideo):
			a.sendText(chatID, "That file does not look like a video.")
		default:
			logger.Error.Printf("telegram: download for chat %d: %v", chatID, err)
			a.sendText(chatID, "Could not fetch that file, please try again.")
		}
		return
	}

	sessionID := sessionIDForChat(chatID)
	if _, err := pipeline.SubmitVideo(ctx, service.SubmitRequest{
		SessionID: sessionID,
		OwnerID:   sessionID,
		VideoRef:  path,
	}); err != nil {
		_ = os.Remove(path)
		a.sendText(chatID, userError(err))
		return
	}
	logger.Info.Printf("telegram: chat %d submitted %s", chatID, logger.Field(filepath.Base(path)))
}

// download stores a Telegram file in the upload directory after checking
// that it is a video. The URL embeds the bot token and is never logged.
func (a *Adapter) download(ctx context.Context, url, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", errors.Unwrap(err))
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(a.cfg.UploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(a.cfg.UploadDir, ".tg-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	keep := false
	defer func() {
		_ = tmp.Close()
		if !keep {
			_ = os.Remove(tmp.Name())
		}
	}()

	limit := int64(a.cfg.MaxUploadMB) << 20
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if n > limit {
		return "", errTooLarge
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	_, ext, err := validation.DetectVideo(tmp)
	if err != nil {
		return "", err
	}

	if name == "" {
		name = "video" + ext
	}
	name = validation.SanitizeFilename(name)
	final := filepath.Join(a.cfg.UploadDir, uuid.NewString()[:8]+"_"+strings.TrimSuffix(name, filepath.Ext(name))+ext)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("store file: %w", err)
	}
	keep = true
	return final, nil
}

func (a *Adapter) styleList() string {
	var b strings.Builder
	b.WriteString("Caption styles:")
	for _, st := range a.styles.Styles() {
		fmt.Fprintf(&b, "\n%s - %s", st.ID, st.Name)
	}
	return b.String()
}

func (a *Adapter) sendText(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		a.send(tgbotapi.NewMessage(chatID, part))
	}
}

func (a *Adapter) send(c tgbotapi.Chattable) {
	if _, err := a.bot.Send(c); err != nil {
		logger.Error.Printf("telegram: send failed: %v", err)
	}
}

// userError turns a pipeline error into a chat reply. Internal errors are
// logged and answered generically.
func userError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "No session in this chat yet. Send a video to start."
	case errors.Is(err, domain.ErrDuplicateSession):
		return "A video is already being captioned here. Use /status to follow it."
	case errors.Is(err, domain.ErrInvalidTransition):
		return "That is not possible right now. Use /status to see what the session is waiting for."
	case errors.Is(err, domain.ErrSegmentNotFound):
		return "No such segment. Use /segments to list them."
	case errors.Is(err, domain.ErrUnknownStyle):
		return "Unknown style. Use /styles to list them."
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		return strings.TrimPrefix(msg, "invalid event: ")
	case errors.Is(err, service.ErrLaneFull), errors.Is(err, service.ErrLanesStopped):
		return "Busy right now, please try again in a moment."
	}
	logger.Error.Printf("telegram: request failed: %v", err)
	return "Something went wrong, please try again."
}

func ackText(sessionID string, ev domain.UserEvent) string {
	switch e := ev.(type) {
	case domain.SegmentApproval:
		return fmt.Sprintf("Segment %s approved.", segmentNumber(sessionID, e.SegmentID))
	case domain.SegmentEdited:
		return fmt.Sprintf("Segment %s updated, rendering a new preview.", segmentNumber(sessionID, e.SegmentID))
	case domain.SegmentConverted:
		return fmt.Sprintf("Converting segment %s to %s.", segmentNumber(sessionID, e.SegmentID), e.Conversion)
	case domain.CaptionModeChanged:
		if e.SegmentID != "" {
			return fmt.Sprintf("Segment %s now uses %s captions.", segmentNumber(sessionID, e.SegmentID), e.Mode)
		}
		return fmt.Sprintf("Caption mode set to %s.", e.Mode)
	}
	return ""
}

// segmentNumber is the 1-based number shown to users for a segment id.
func segmentNumber(sessionID, segmentID string) string {
	n, err := strconv.Atoi(strings.TrimPrefix(segmentID, sessionID+"-"))
	if err != nil {
		return segmentID
	}
	return strconv.Itoa(n + 1)
}

func statusText(sess *domain.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s", sess.State.Label())
	if sess.CaptionStyle != "" {
		fmt.Fprintf(&b, "\nStyle: %s, mode: %s", sess.CaptionStyle, sess.CaptionMode)
	}
	if sess.FailureReason != "" {
		fmt.Fprintf(&b, "\nReason: %s", sess.FailureReason)
	}
	return b.String()
}

func segmentsText(sess *domain.Session, segs []*domain.Segment) string {
	if len(segs) == 0 {
		return "No segments yet."
	}
	var b strings.Builder
	b.WriteString("Segments:")
	for _, seg := range segs {
		fmt.Fprintf(&b, "\n%d. [%s] %s", seg.Index+1, strings.ToLower(string(seg.Status)), logger.Truncate(seg.Transcript(), 200))
		if seg.Mode != "" && seg.Mode != sess.CaptionMode {
			fmt.Fprintf(&b, " (%s)", seg.Mode)
		}
	}
	return b.String()
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := min(maxTelegramMessage, len(text))
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
