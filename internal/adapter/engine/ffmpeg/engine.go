package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/executor"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

const subtitleFile = "captions.ass"

type Config struct {
	FFmpegBinary   string
	FFprobeBinary  string
	WorkDir        string
	OutputDir      string
	SegmentSeconds int
}

// Engine splits, previews and renders videos with the ffmpeg CLI.
type Engine struct {
	exec executor.Executor
	cfg  Config
}

var _ port.MediaEngine = (*Engine)(nil)

func NewEngine(exec executor.Executor, cfg Config) *Engine {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.FFprobeBinary == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 30
	}
	return &Engine{exec: exec, cfg: cfg}
}

// Split cuts the video into chunks of roughly SegmentSeconds at keyframes
// and returns them with their offsets in the source.
func (e *Engine) Split(ctx context.Context, sessionID, videoRef string) ([]domain.SegmentOutput, error) {
	if err := validatePath(videoRef); err != nil {
		return nil, domain.Permanent(fmt.Errorf("invalid input path: %w", err))
	}
	if err := validatePath(sessionID); err != nil {
		return nil, domain.Permanent(fmt.Errorf("invalid session id: %w", err))
	}
	if _, err := os.Stat(videoRef); err != nil {
		return nil, domain.Permanent(fmt.Errorf("video not readable: %w", err))
	}

	dir := filepath.Join(e.cfg.WorkDir, sessionID, "chunks")
	// A retried split must not pick up chunks of an earlier attempt.
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear chunks dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create chunks dir: %w", err)
	}

	args := []string{
		"-hide_banner", "-y",
		"-i", videoRef,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-c", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(e.cfg.SegmentSeconds),
		"-reset_timestamps", "1",
		filepath.Join(dir, "chunk_%03d.mp4"),
	}
	if _, err := e.exec.Execute(ctx, executor.Command{Name: e.cfg.FFmpegBinary, Args: args}); err != nil {
		return nil, fmt.Errorf("ffmpeg split: %w", err)
	}

	chunks, err := filepath.Glob(filepath.Join(dir, "chunk_*.mp4"))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	sort.Strings(chunks)

	outs := make([]domain.SegmentOutput, 0, len(chunks))
	var offset int64
	for _, chunk := range chunks {
		probe, err := e.Probe(ctx, chunk)
		if err != nil {
			return nil, err
		}
		d := probe.DurationMs()
		if d <= 0 {
			logger.Debug.Printf("session %s: dropping empty chunk %s", sessionID, filepath.Base(chunk))
			_ = os.Remove(chunk)
			continue
		}
		outs = append(outs, domain.SegmentOutput{Ref: chunk, StartMs: offset, EndMs: offset + d})
		offset += d
	}

	logger.Info.Printf("session %s: split into %d chunks", sessionID, len(outs))
	return outs, nil
}

// RenderPreview burns the captions of one segment into a copy of its chunk.
func (e *Engine) RenderPreview(ctx context.Context, segmentID string, p domain.PreviewPayload) (string, error) {
	if err := validatePath(p.SegmentRef); err != nil {
		return "", domain.Permanent(fmt.Errorf("invalid input path: %w", err))
	}

	// Previews live beside the chunks directory of the session.
	previewsDir := filepath.Join(filepath.Dir(filepath.Dir(p.SegmentRef)), "previews")
	if err := os.MkdirAll(previewsDir, 0755); err != nil {
		return "", fmt.Errorf("create previews dir: %w", err)
	}
	// Each issuance gets its own file so a late stale job cannot overwrite a newer preview.
	dest := filepath.Join(previewsDir, fmt.Sprintf("%s_%s.mp4", segmentID, uuid.NewString()[:8]))

	tmp, err := e.tempDir("preview-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	w, h := e.dimensions(ctx, p.SegmentRef)
	script := BuildASS(p.Style, p.Mode, p.Transcript, p.DurationMs, w, h)
	if err := e.burn(ctx, tmp, p.SegmentRef, script, "out.mp4"); err != nil {
		return "", err
	}
	if err := moveFile(filepath.Join(tmp, "out.mp4"), dest); err != nil {
		return "", fmt.Errorf("move preview: %w", err)
	}
	return dest, nil
}

// RenderFinal burns every part and concatenates them in order.
func (e *Engine) RenderFinal(ctx context.Context, sessionID string, p domain.RenderPayload) (string, error) {
	if len(p.Parts) == 0 {
		return "", domain.Permanent(errors.New("nothing to render"))
	}
	if err := validatePath(sessionID); err != nil {
		return "", domain.Permanent(fmt.Errorf("invalid session id: %w", err))
	}
	if err := os.MkdirAll(e.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := e.tempDir("render-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	var list strings.Builder
	for i, part := range p.Parts {
		if err := validatePath(part.SegmentRef); err != nil {
			return "", domain.Permanent(fmt.Errorf("invalid input path for part %d: %w", i+1, err))
		}
		w, h := e.dimensions(ctx, part.SegmentRef)
		script := BuildASS(p.Style, part.Mode, part.Transcript, part.DurationMs, w, h)
		name := fmt.Sprintf("part_%03d.mp4", i)
		if err := e.burn(ctx, tmp, part.SegmentRef, script, name); err != nil {
			return "", fmt.Errorf("part %d: %w", i+1, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", name)
	}

	if err := os.WriteFile(filepath.Join(tmp, "parts.txt"), []byte(list.String()), 0644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	args := []string{
		"-hide_banner", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", "parts.txt",
		"-c", "copy",
		"-movflags", "+faststart",
		"final.mp4",
	}
	if _, err := e.exec.Execute(ctx, executor.Command{Name: e.cfg.FFmpegBinary, Args: args, Dir: tmp}); err != nil {
		return "", fmt.Errorf("ffmpeg concat: %w", err)
	}

	dest := filepath.Join(e.cfg.OutputDir, sessionID+".mp4")
	if err := moveFile(filepath.Join(tmp, "final.mp4"), dest); err != nil {
		return "", fmt.Errorf("move output: %w", err)
	}
	logger.Info.Printf("session %s: rendered %d parts to %s", sessionID, len(p.Parts), dest)
	return dest, nil
}

// burn writes the subtitle script into dir and runs ffmpeg there, so the
// subtitles filter gets a plain relative file name.
func (e *Engine) burn(ctx context.Context, dir, input, script, outName string) error {
	if err := os.WriteFile(filepath.Join(dir, subtitleFile), []byte(script), 0644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	absInput, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	args := []string{
		"-hide_banner", "-y",
		"-i", absInput,
		"-vf", "subtitles=" + subtitleFile,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outName,
	}
	if _, err := e.exec.Execute(ctx, executor.Command{Name: e.cfg.FFmpegBinary, Args: args, Dir: dir}); err != nil {
		return fmt.Errorf("ffmpeg burn subtitles: %w", err)
	}
	return nil
}

func (e *Engine) Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error) {
	if err := validatePath(inputPath); err != nil {
		return nil, domain.Permanent(fmt.Errorf("invalid input path: %w", err))
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	output, err := e.exec.Execute(ctx, executor.Command{Name: e.cfg.FFprobeBinary, Args: args})
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe domain.ProbeResult
	if err := json.Unmarshal([]byte(output), &probe); err != nil {
		return nil, domain.Permanent(fmt.Errorf("failed to parse ffprobe output: %w", err))
	}
	if probe.VideoStream() == nil {
		return nil, domain.Permanent(errors.New("no video stream found"))
	}
	return &probe, nil
}

// dimensions falls back to 1080p when the chunk cannot be probed.
func (e *Engine) dimensions(ctx context.Context, path string) (int, int) {
	probe, err := e.Probe(ctx, path)
	if err != nil {
		logger.Debug.Printf("probe %s: %v", filepath.Base(path), err)
		return 0, 0
	}
	vs := probe.VideoStream()
	return vs.Width, vs.Height
}

func (e *Engine) tempDir(pattern string) (string, error) {
	if e.cfg.WorkDir != "" {
		if err := os.MkdirAll(e.cfg.WorkDir, 0755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(e.cfg.WorkDir, pattern)
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return nil
}
