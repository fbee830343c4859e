package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Capture engine error taxonomy.
var (
	ErrAlreadyRecording = errors.New("audio: capture already recording")
	ErrNotRecording     = errors.New("audio: no capture in progress")
	ErrStreamOpenFailed = errors.New("audio: failed to open capture stream")
	ErrCallbackStalled  = errors.New("audio: capture callback stalled")
	ErrStopTimedOut     = errors.New("audio: stop did not settle in time")
	ErrWriterFailed     = errors.New("audio: failed to finalize capture file")
)

const (
	callbackWatchdogPoll   = 250 * time.Millisecond
	callbackStallThreshold = 750 * time.Millisecond
	stopSettleTimeout      = 2 * time.Second
	retryBackoff           = 300 * time.Millisecond
)

// armingWatchdogDelay is a var, not a const, so tests can shrink the
// first-frame deadline instead of waiting out the real 1500 ms twice per
// restart scenario.
var armingWatchdogDelay = 1500 * time.Millisecond

// CaptureResult is the finalized outcome of one recording session.
type CaptureResult struct {
	SessionID  string
	Path       string
	DurationMS int64
	SampleRate int
	Channels   int
}

// streamOpener opens a live frame source for a device; swappable in tests.
type streamOpener func(Device, func([]byte)) (recordStream, error)

// Engine is the internally-serialized capture actor: only it may mutate
// the underlying stream, watchdogs, and writer file handle.
type Engine struct {
	tempDir string
	open    streamOpener

	mu        sync.Mutex
	selection Selection
	prepared  bool

	recording   bool
	sessionID   string
	startedAt   time.Time
	stream      recordStream
	writer      *wavWriter
	firstFrame  bool
	firstFrameC chan struct{}
	pendingFail bool
	writeErr    error
	watchdogsWG sync.WaitGroup
	stopWatch   chan struct{}
}

// NewEngine constructs a capture engine writing temp WAV files under tempDir.
func NewEngine(tempDir string) *Engine {
	return &Engine{
		tempDir: tempDir,
		open: func(d Device, onFrame func([]byte)) (recordStream, error) {
			return openPulseStream(d, onFrame)
		},
	}
}

// PrepareEngine resolves and caches the input device selection.
func (e *Engine) PrepareEngine(ctx context.Context, input, fallback string) error {
	selection, err := SelectDevice(ctx, input, fallback)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.selection = selection
	e.prepared = true
	e.mu.Unlock()
	return nil
}

// StartRecording opens the capture stream for sessionID, retrying once on
// a non-device failure, and arms the watchdogs.
func (e *Engine) StartRecording(sessionID string) error {
	e.mu.Lock()
	if e.recording {
		e.mu.Unlock()
		return ErrAlreadyRecording
	}
	if !e.prepared {
		e.mu.Unlock()
		return ErrNoInputDevice
	}
	selection := e.selection
	e.mu.Unlock()

	path := filepath.Join(e.tempDir, sessionID+".wav")
	if err := os.MkdirAll(e.tempDir, 0o700); err != nil {
		return fmt.Errorf("ensure capture temp dir: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}

		stream, writer, err := e.openAndWrite(selection, path)
		if err == nil {
			e.mu.Lock()
			e.recording = true
			e.sessionID = sessionID
			e.startedAt = time.Now()
			e.stream = stream
			e.writer = writer
			e.firstFrame = false
			e.firstFrameC = make(chan struct{})
			e.pendingFail = false
			e.writeErr = nil
			e.stopWatch = make(chan struct{})
			e.mu.Unlock()

			e.armWatchdogs()
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %v", ErrStreamOpenFailed, lastErr)
}

func (e *Engine) openAndWrite(selection Selection, path string) (recordStream, *wavWriter, error) {
	writer, err := newWAVWriter(path, 16000, 1)
	if err != nil {
		return nil, nil, err
	}

	stream, err := e.open(selection.Device, func(frame []byte) {
		e.mu.Lock()
		if !e.firstFrame {
			e.firstFrame = true
			if e.firstFrameC != nil {
				close(e.firstFrameC)
			}
		}
		if werr := writer.Write(frame); werr != nil && e.writeErr == nil {
			e.writeErr = werr
		}
		e.mu.Unlock()
	})
	if err != nil {
		writer.Close()
		return nil, nil, err
	}

	return stream, writer, nil
}

// WaitForFirstFrame blocks until the first frame arrives or timeout elapses.
func (e *Engine) WaitForFirstFrame(timeout time.Duration) bool {
	e.mu.Lock()
	ch := e.firstFrameC
	already := e.firstFrame
	e.mu.Unlock()

	if already {
		return true
	}
	if ch == nil {
		return false
	}

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// armWatchdogs starts the arming and callback-stall watchdogs for the
// current recording session; both stop on e.stopWatch closing.
func (e *Engine) armWatchdogs() {
	e.mu.Lock()
	stopCh := e.stopWatch
	e.mu.Unlock()

	e.watchdogsWG.Add(1)
	go func() {
		defer e.watchdogsWG.Done()
		timer := time.NewTimer(armingWatchdogDelay)
		defer timer.Stop()
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		e.mu.Lock()
		arrived := e.firstFrame
		selection := e.selection
		e.mu.Unlock()
		if arrived {
			return
		}

		if !e.restartStream(selection) {
			e.markPendingFailure()
			return
		}

		retryTimer := time.NewTimer(armingWatchdogDelay)
		defer retryTimer.Stop()
		select {
		case <-stopCh:
			return
		case <-retryTimer.C:
			e.mu.Lock()
			arrived := e.firstFrame
			e.mu.Unlock()
			if !arrived {
				e.markPendingFailure()
			}
		}
	}()

	e.watchdogsWG.Add(1)
	go func() {
		defer e.watchdogsWG.Done()
		ticker := time.NewTicker(callbackWatchdogPoll)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				e.mu.Lock()
				stream := e.stream
				started := e.startedAt
				e.mu.Unlock()
				if stream == nil {
					continue
				}
				last := stream.LastFrameAt()
				if last.IsZero() {
					last = started
				}
				if time.Since(last) > callbackStallThreshold {
					e.markPendingFailure()
					return
				}
			}
		}
	}()
}

// restartStream tears down the current stream/writer and reopens a fresh
// one at the same session's path. Called once by the arming watchdog when
// no frame has arrived by its deadline, before escalating to a pending
// failure. Safe to discard the old writer: with no frame delivered yet,
// nothing has been written to it.
func (e *Engine) restartStream(selection Selection) bool {
	e.mu.Lock()
	oldStream := e.stream
	oldWriter := e.writer
	sessionID := e.sessionID
	e.mu.Unlock()

	if oldStream != nil {
		_ = oldStream.Stop()
	}
	if oldWriter != nil {
		_ = oldWriter.Close()
	}

	path := filepath.Join(e.tempDir, sessionID+".wav")
	stream, writer, err := e.openAndWrite(selection, path)
	if err != nil {
		return false
	}

	e.mu.Lock()
	e.stream = stream
	e.writer = writer
	e.mu.Unlock()
	return true
}

func (e *Engine) markPendingFailure() {
	e.mu.Lock()
	e.pendingFail = true
	e.mu.Unlock()
}

// OnConfigurationChange and OnWillSleep mark a pending streamOpenFailed so
// the next StopRecording fails deterministically; the
// lifecycle transition itself is the coordinator's responsibility.
func (e *Engine) OnConfigurationChange() { e.markPendingFailure() }
func (e *Engine) OnWillSleep()           { e.markPendingFailure() }

// OnDidWake re-prepares the engine's device selection.
func (e *Engine) OnDidWake(ctx context.Context, input, fallback string) error {
	return e.PrepareEngine(ctx, input, fallback)
}

// StopRecording finalizes the current session's audio file.
func (e *Engine) StopRecording() (CaptureResult, error) {
	e.mu.Lock()
	if !e.recording {
		e.mu.Unlock()
		return CaptureResult{}, ErrNotRecording
	}
	stream := e.stream
	writer := e.writer
	sessionID := e.sessionID
	startedAt := e.startedAt
	pendingFail := e.pendingFail
	stopCh := e.stopWatch
	e.mu.Unlock()

	close(stopCh)

	settled := make(chan error, 1)
	go func() {
		if stream != nil {
			_ = stream.Stop()
		}
		e.watchdogsWG.Wait()
		settled <- writer.Close()
	}()

	var closeErr error
	select {
	case closeErr = <-settled:
	case <-time.After(stopSettleTimeout):
		e.forceTeardown()
		return CaptureResult{}, ErrStopTimedOut
	}

	durationMS := time.Since(startedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	e.mu.Lock()
	path := writer.file.Name()
	sampleRate := 16000
	channels := 1
	if e.stream != nil {
		sampleRate = e.stream.SampleRate()
		channels = e.stream.Channels()
	}
	writeErr := e.writeErr
	e.recording = false
	e.stream = nil
	e.writer = nil
	e.mu.Unlock()

	if pendingFail {
		return CaptureResult{}, ErrStreamOpenFailed
	}
	if closeErr != nil {
		return CaptureResult{}, fmt.Errorf("%w: %v", ErrWriterFailed, closeErr)
	}
	if writeErr != nil {
		return CaptureResult{}, fmt.Errorf("%w: %v", ErrWriterFailed, writeErr)
	}

	return CaptureResult{
		SessionID:  sessionID,
		Path:       path,
		DurationMS: durationMS,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// CancelRecording releases resources without producing a CaptureResult.
func (e *Engine) CancelRecording() {
	e.mu.Lock()
	if !e.recording {
		e.mu.Unlock()
		return
	}
	stream := e.stream
	writer := e.writer
	path := ""
	if writer != nil {
		path = writer.file.Name()
	}
	stopCh := e.stopWatch
	e.recording = false
	e.stream = nil
	e.writer = nil
	e.mu.Unlock()

	close(stopCh)
	if stream != nil {
		_ = stream.Stop()
	}
	e.watchdogsWG.Wait()
	if writer != nil {
		_ = writer.Close()
	}
	if path != "" {
		_ = os.Remove(path)
	}
}

// forceTeardown unconditionally tears down the stream on the stop-timeout path.
func (e *Engine) forceTeardown() {
	e.mu.Lock()
	stream := e.stream
	e.recording = false
	e.stream = nil
	e.writer = nil
	e.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
	}
}
