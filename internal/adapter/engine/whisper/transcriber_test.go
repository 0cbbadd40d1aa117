package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/executor"
)

type fakeExec struct {
	calls  []executor.Command
	handle func(c executor.Command) (string, error)
}

func (f *fakeExec) Execute(_ context.Context, c executor.Command) (string, error) {
	f.calls = append(f.calls, c)
	return f.handle(c)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func chunk(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_000.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	return path
}

func TestTranscribe(t *testing.T) {
	fx := &fakeExec{}
	fx.handle = func(c executor.Command) (string, error) {
		if c.Name == "whisper-cli" {
			out := argAfter(c.Args, "--output-file") + ".txt"
			return "", os.WriteFile(out, []byte(" Hello there.\n [Music]\n General Kenobi!\n"), 0644)
		}
		return "", nil
	}
	tr := NewTranscriber(fx, Config{ModelPath: "/models/base.bin", Language: "en", Threads: 8, TempDir: t.TempDir()})

	text, err := tr.Transcribe(context.Background(), chunk(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello there. General Kenobi!", text)

	require.Len(t, fx.calls, 2)
	assert.Equal(t, "ffmpeg", fx.calls[0].Name)
	assert.Equal(t, "16000", argAfter(fx.calls[0].Args, "-ar"))
	assert.Equal(t, "1", argAfter(fx.calls[0].Args, "-ac"))

	whisper := fx.calls[1]
	assert.Equal(t, "/models/base.bin", argAfter(whisper.Args, "-m"))
	assert.Equal(t, "en", argAfter(whisper.Args, "-l"))
	assert.Equal(t, "8", argAfter(whisper.Args, "-t"))
	assert.Contains(t, whisper.Args, "-otxt")
	assert.Equal(t, argAfter(fx.calls[0].Args, "-y"), argAfter(whisper.Args, "-f"))
}

func TestTranscribe_NoAudio(t *testing.T) {
	fx := &fakeExec{handle: func(c executor.Command) (string, error) {
		return "", errors.New("command 'ffmpeg' failed: exit status 1\nstderr: Output file #0 does not contain any stream")
	}}
	tr := NewTranscriber(fx, Config{ModelPath: "/models/base.bin"})

	text, err := tr.Transcribe(context.Background(), chunk(t))
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Len(t, fx.calls, 1)
}

func TestTranscribe_Errors(t *testing.T) {
	fx := &fakeExec{handle: func(executor.Command) (string, error) { return "", nil }}

	_, err := NewTranscriber(fx, Config{ModelPath: "m"}).Transcribe(context.Background(), "")
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))

	_, err = NewTranscriber(fx, Config{ModelPath: "m"}).Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))

	_, err = NewTranscriber(fx, Config{}).Transcribe(context.Background(), chunk(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no whisper model")

	assert.Empty(t, fx.calls)
}

func TestTranscribe_WhisperFailure(t *testing.T) {
	fx := &fakeExec{handle: func(c executor.Command) (string, error) {
		if c.Name == "whisper-cli" {
			return "", errors.New("command 'whisper-cli' failed: signal: killed")
		}
		return "", nil
	}}
	tr := NewTranscriber(fx, Config{ModelPath: "m", TempDir: t.TempDir()})

	_, err := tr.Transcribe(context.Background(), chunk(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whisper transcribe")
	assert.True(t, domain.IsTransient(err))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", normalize("\n \n"))
	assert.Equal(t, "a b c", normalize("a\n b\n\nc"))
	assert.Equal(t, "keep (this)", normalize("keep (this) (APPLAUSE) [BLANK_AUDIO]"))
}
