package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/executor"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
)

type Config struct {
	FFmpegBinary string
	Binary       string
	ModelPath    string
	Language     string
	Threads      int
	TempDir      string
}

// Transcriber extracts the audio of a chunk and runs the whisper.cpp CLI on it.
type Transcriber struct {
	exec executor.Executor
	cfg  Config
}

var _ port.Transcriber = (*Transcriber)(nil)

func NewTranscriber(exec executor.Executor, cfg Config) *Transcriber {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	return &Transcriber{exec: exec, cfg: cfg}
}

func (t *Transcriber) Transcribe(ctx context.Context, segmentRef string) (string, error) {
	if segmentRef == "" || strings.ContainsRune(segmentRef, 0) {
		return "", domain.Permanent(fmt.Errorf("invalid segment path %q", segmentRef))
	}
	if _, err := os.Stat(segmentRef); err != nil {
		return "", domain.Permanent(fmt.Errorf("segment not readable: %w", err))
	}
	if t.cfg.ModelPath == "" {
		return "", domain.Permanent(errors.New("no whisper model configured"))
	}

	if t.cfg.TempDir != "" {
		if err := os.MkdirAll(t.cfg.TempDir, 0755); err != nil {
			return "", fmt.Errorf("create temp dir: %w", err)
		}
	}
	tmp, err := os.MkdirTemp(t.cfg.TempDir, "whisper-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	audioPath := filepath.Join(tmp, "audio.wav")
	hasAudio, err := t.extractAudio(ctx, segmentRef, audioPath)
	if err != nil {
		return "", err
	}
	if !hasAudio {
		logger.Debug.Printf("segment %s has no audio stream", filepath.Base(segmentRef))
		return "", nil
	}

	prefix := filepath.Join(tmp, "transcript")
	args := []string{
		"-m", t.cfg.ModelPath,
		"-f", audioPath,
		"-otxt",
		"-np",
		"-l", t.cfg.Language,
		"-t", strconv.Itoa(t.cfg.Threads),
		"--output-file", prefix,
	}
	if _, err := t.exec.Execute(ctx, executor.Command{Name: t.cfg.Binary, Args: args}); err != nil {
		return "", fmt.Errorf("whisper transcribe: %w", err)
	}

	data, err := os.ReadFile(prefix + ".txt")
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return normalize(string(data)), nil
}

// extractAudio converts the chunk to 16kHz mono PCM, the input whisper expects.
func (t *Transcriber) extractAudio(ctx context.Context, videoPath, audioPath string) (bool, error) {
	args := []string{
		"-hide_banner",
		"-i", videoPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-threads", "0",
		"-y",
		audioPath,
	}
	if _, err := t.exec.Execute(ctx, executor.Command{Name: t.cfg.FFmpegBinary, Args: args}); err != nil {
		if strings.Contains(err.Error(), "does not contain any stream") {
			return false, nil
		}
		return false, fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return true, nil
}

// normalize joins whisper's line-per-segment output into one paragraph and
// drops non-speech markers such as [Music].
func normalize(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		if isMarker(w) {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

func isMarker(w string) bool {
	return (strings.HasPrefix(w, "[") && strings.HasSuffix(w, "]")) ||
		(strings.HasPrefix(w, "(") && strings.HasSuffix(w, ")") && strings.ToUpper(w) == w)
}
