package hotkey

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileEventLog is a single append-only text log of register/dispatch/
// unregister events, one per line, timestamped.
type FileEventLog struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewFileEventLog opens (creating if necessary) path for appending.
func NewFileEventLog(path string) (*FileEventLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open hotkey event log: %w", err)
	}
	return &FileEventLog{file: file, now: time.Now}, nil
}

func (l *FileEventLog) Append(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.file, "%s %s\n", l.now().UTC().Format(time.RFC3339Nano), event)
}

func (l *FileEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
