package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavWriter appends 16-bit little-endian PCM frames to a temp file and
// patches the RIFF/data chunk sizes on Close.
type wavWriter struct {
	file       *os.File
	sampleRate int
	channels   int
	dataBytes  int64
}

func newWAVWriter(path string, sampleRate, channels int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file %q: %w", path, err)
	}

	w := &wavWriter{file: f, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeaderPlaceholder(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeaderPlaceholder() error {
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	byteRate := w.sampleRate * w.channels * 2
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(w.channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample
	copy(header[36:40], "data")

	_, err := w.file.Write(header)
	return err
}

// Write appends a raw PCM frame to the file.
func (w *wavWriter) Write(frame []byte) error {
	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("write pcm frame: %w", err)
	}
	w.dataBytes += int64(len(frame))
	return nil
}

// Close patches the RIFF and data chunk sizes and closes the file.
func (w *wavWriter) Close() error {
	defer w.file.Close()

	riffSize := uint32(36 + w.dataBytes)
	dataSize := uint32(w.dataBytes)

	if _, err := w.file.Seek(4, 0); err != nil {
		return fmt.Errorf("seek riff size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, riffSize); err != nil {
		return fmt.Errorf("write riff size: %w", err)
	}
	if _, err := w.file.Seek(40, 0); err != nil {
		return fmt.Errorf("seek data size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, dataSize); err != nil {
		return fmt.Errorf("write data size: %w", err)
	}
	return nil
}
