package pipeline

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxChunkDuration is the per-chunk ceiling: audio is
// split along frame boundaries into chunks no longer than this.
const maxChunkDuration = 5 * 60 // seconds

// wavFrameChunker splits a PCM WAV file into ≤5-minute chunks along frame
// boundaries, writing each chunk as its own temporary WAV file. It never
// transcodes: every provider this pipeline talks to accepts WAV natively,
// so the "transcode to a vendor-accepted container" branch
// is a no-op here.
type wavFrameChunker struct {
	tempDir string
}

// NewWAVFrameChunker builds a Chunker that scopes its temporary chunk files
// under tempDir.
func NewWAVFrameChunker(tempDir string) Chunker {
	return &wavFrameChunker{tempDir: tempDir}
}

func (c *wavFrameChunker) Chunk(ctx context.Context, audioPath string) ([]string, func(), error) {
	header, frames, err := readWAV(audioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrChunkingFailed, err)
	}

	framesPerChunk := header.sampleRate * maxChunkDuration
	if framesPerChunk <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid sample rate", ErrChunkingFailed)
	}

	scopeDir, err := os.MkdirTemp(c.tempDir, "quedo-chunks-*")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrChunkingFailed, err)
	}
	cleanup := func() { _ = os.RemoveAll(scopeDir) }

	var paths []string
	totalFrames := len(frames) / header.blockAlign
	for start := 0; start < totalFrames || (start == 0 && totalFrames == 0); start += framesPerChunk {
		end := start + framesPerChunk
		if end > totalFrames {
			end = totalFrames
		}

		chunkFrames := frames[start*header.blockAlign : end*header.blockAlign]
		path := filepath.Join(scopeDir, uuid.NewString()+".wav")
		if err := writeWAV(path, header, chunkFrames); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("%w: %v", ErrChunkingFailed, err)
		}
		paths = append(paths, path)

		if totalFrames == 0 {
			break
		}
	}

	return paths, cleanup, nil
}

type wavHeader struct {
	sampleRate int
	channels   int
	bitDepth   int
	blockAlign int
}

// readWAV parses a canonical 44-byte-header PCM WAV file and returns its
// format plus the raw frame bytes following the "data" chunk.
func readWAV(path string) (wavHeader, []byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return wavHeader{}, nil, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	header := make([]byte, 44)
	if _, err := io.ReadFull(reader, header); err != nil {
		return wavHeader{}, nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavHeader{}, nil, fmt.Errorf("not a WAV file")
	}

	channels := int(binary.LittleEndian.Uint16(header[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(header[24:28]))
	bitDepth := int(binary.LittleEndian.Uint16(header[34:36]))
	blockAlign := channels * (bitDepth / 8)
	if blockAlign <= 0 {
		blockAlign = 2
	}

	frames, err := io.ReadAll(reader)
	if err != nil {
		return wavHeader{}, nil, fmt.Errorf("read wav frames: %w", err)
	}

	return wavHeader{sampleRate: sampleRate, channels: channels, bitDepth: bitDepth, blockAlign: blockAlign}, frames, nil
}

// writeWAV writes a canonical 44-byte-header PCM WAV file for one chunk.
func writeWAV(path string, header wavHeader, frames []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	byteRate := header.sampleRate * header.blockAlign
	dataSize := uint32(len(frames))

	out := make([]byte, 44)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(header.channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(header.sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(header.blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(header.bitDepth))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	if _, err := file.Write(out); err != nil {
		return err
	}
	_, err = file.Write(frames)
	return err
}
