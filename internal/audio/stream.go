package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// recordStream is the minimal surface the capture engine depends on,
// satisfied by *pulseRecordStream in production and a fake in tests.
type recordStream interface {
	Stop() error
	LastFrameAt() time.Time
	SampleRate() int
	Channels() int
}

// pulseRecordStream wraps a live PulseAudio record stream, writing every
// frame's raw bytes to onFrame and tracking the last-frame timestamp for
// the callback-stall watchdog.
type pulseRecordStream struct {
	client *pulse.Client
	stream *pulse.RecordStream

	onFrame func([]byte)

	mu       sync.Mutex
	lastAt   time.Time
	stopped  bool
	sampleHz int
	channels int
}

// openPulseStream connects to PulseAudio and starts a mono 16kHz s16le
// record stream from the selected device, invoking onFrame for every
// buffer Pulse delivers.
func openPulseStream(selected Device, onFrame func([]byte)) (*pulseRecordStream, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("quedo"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	s := &pulseRecordStream{
		client:   client,
		onFrame:  onFrame,
		sampleHz: 16000,
		channels: 1,
	}

	writer := pulse.NewWriter(writerFunc(s.write), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(s.sampleHz),
		pulse.RecordMediaName("quedo dictation"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	s.stream = stream
	stream.Start()
	return s, nil
}

func (s *pulseRecordStream) write(buf []byte) (int, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	s.lastAt = time.Now()
	s.mu.Unlock()

	if len(buf) > 0 && s.onFrame != nil {
		frame := make([]byte, len(buf))
		copy(frame, buf)
		s.onFrame(frame)
	}
	return len(buf), nil
}

func (s *pulseRecordStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func (s *pulseRecordStream) LastFrameAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAt
}

func (s *pulseRecordStream) SampleRate() int { return s.sampleHz }
func (s *pulseRecordStream) Channels() int   { return s.channels }

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
