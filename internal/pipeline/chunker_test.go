package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixtureWAV(t *testing.T, sampleRate, channels, bitDepth int, frameCount int) string {
	t.Helper()
	blockAlign := channels * (bitDepth / 8)
	frames := make([]byte, frameCount*blockAlign)
	for i := range frames {
		frames[i] = byte(i % 256)
	}

	path := filepath.Join(t.TempDir(), "fixture.wav")
	header := wavHeader{sampleRate: sampleRate, channels: channels, bitDepth: bitDepth, blockAlign: blockAlign}
	require.NoError(t, writeWAV(path, header, frames))
	return path
}

func TestChunkExactlyOneChunkWorthYieldsOneChunk(t *testing.T) {
	sampleRate := 16000
	framesPerChunk := sampleRate * maxChunkDuration
	path := writeFixtureWAV(t, sampleRate, 1, 16, framesPerChunk)

	chunker := NewWAVFrameChunker(t.TempDir())
	paths, cleanup, err := chunker.Chunk(t.Context(), path)
	defer cleanup()

	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestChunkOneFrameOverYieldsTwoChunks(t *testing.T) {
	sampleRate := 16000
	framesPerChunk := sampleRate * maxChunkDuration
	path := writeFixtureWAV(t, sampleRate, 1, 16, framesPerChunk+1)

	chunker := NewWAVFrameChunker(t.TempDir())
	paths, cleanup, err := chunker.Chunk(t.Context(), path)
	defer cleanup()

	require.NoError(t, err)
	require.Len(t, paths, 2)
}

func TestChunkCleanupRemovesTemporaryFiles(t *testing.T) {
	path := writeFixtureWAV(t, 16000, 1, 16, 1000)
	scopeParent := t.TempDir()

	chunker := NewWAVFrameChunker(scopeParent)
	paths, cleanup, err := chunker.Chunk(t.Context(), path)
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		_, statErr := os.Stat(p)
		require.NoError(t, statErr)
	}

	cleanup()

	for _, p := range paths {
		_, statErr := os.Stat(p)
		require.True(t, os.IsNotExist(statErr))
	}
}

func TestChunkRejectsNonWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-wav.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all........."), 0o600))

	chunker := NewWAVFrameChunker(t.TempDir())
	_, _, err := chunker.Chunk(t.Context(), path)
	require.ErrorIs(t, err, ErrChunkingFailed)
}

func TestChunkPreservesFrameData(t *testing.T) {
	path := writeFixtureWAV(t, 16000, 1, 16, 500)

	chunker := NewWAVFrameChunker(t.TempDir())
	paths, cleanup, err := chunker.Chunk(t.Context(), path)
	defer cleanup()
	require.NoError(t, err)
	require.Len(t, paths, 1)

	_, frames, err := readWAV(paths[0])
	require.NoError(t, err)
	require.Len(t, frames, 500*2)
}
