package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		_ = SetLevel("info")
	})

	require.NoError(t, SetLevel("warn"))
	Debug.Print("d")
	Info.Print("i")
	Warn.Print("w")
	Error.Print("e")
	out := buf.String()
	assert.NotContains(t, out, "DEBUG: ")
	assert.NotContains(t, out, "INFO: ")
	assert.Contains(t, out, "WARN: ")
	assert.Contains(t, out, "ERROR: ")

	buf.Reset()
	require.NoError(t, SetLevel("DEBUG"))
	Debug.Print("d")
	assert.Contains(t, buf.String(), "DEBUG: ")

	assert.Error(t, SetLevel("verbose"))
}
