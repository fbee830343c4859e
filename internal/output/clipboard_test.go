package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture-stdin.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\ncat > \"$1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fail.sh")
	script := "#!/usr/bin/env bash\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestExecClipboardWriterWritesStdin(t *testing.T) {
	script := writeStdinCaptureScript(t)
	outPath := filepath.Join(t.TempDir(), "clip.txt")

	writer := NewExecClipboardWriter([]string{script, outPath})
	require.NoError(t, writer.Write(t.Context(), "hello world"))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestExecClipboardWriterRejectsEmptyArgv(t *testing.T) {
	writer := NewExecClipboardWriter(nil)
	err := writer.Write(t.Context(), "hello")
	require.Error(t, err)
}

func TestExecClipboardWriterPropagatesCommandFailure(t *testing.T) {
	script := writeFailScript(t)
	writer := NewExecClipboardWriter([]string{script})
	err := writer.Write(t.Context(), "hello")
	require.Error(t, err)
}
