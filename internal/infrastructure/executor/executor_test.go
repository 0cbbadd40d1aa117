package executor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestExecute_Stdout(t *testing.T) {
	requireBinary(t, "echo")

	out, err := New().Execute(context.Background(), Command{Name: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecute_Stdin(t *testing.T) {
	requireBinary(t, "cat")

	out, err := New().Execute(context.Background(), Command{Name: "cat", Stdin: "from stdin"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", out)
}

func TestExecute_Dir(t *testing.T) {
	requireBinary(t, "pwd")
	dir := t.TempDir()

	out, err := New().Execute(context.Background(), Command{Name: "pwd", Dir: dir})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), dir[strings.LastIndex(dir, "/"):]))
}

func TestExecute_FailureIncludesStderr(t *testing.T) {
	requireBinary(t, "sh")

	_, err := New().Execute(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command 'sh' failed")
	assert.Contains(t, err.Error(), "stderr: boom")
}

func TestExecute_Cancelled(t *testing.T) {
	requireBinary(t, "sleep")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New().Execute(ctx, Command{Name: "sleep", Args: []string{"5"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "a\nb", lastLines("a\nb", 5))
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd", 2))
}
