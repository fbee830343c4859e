package hotkey

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rbright/quedo/internal/config"
)

// execNativeBackend registers standard modifier+key chords by launching one
// long-running listener process per chord (the platform's global-hotkey
// tool, invoked with the chord's wire form appended to a configured argv).
// The listener streams one line per edge ("pressed"/"released") to stdout
// until its process is killed at Unregister. This generalizes an
// exec-dispatch idiom for platform integration from one-shot commands to a
// streaming listener.
type execNativeBackend struct {
	listenerArgv []string

	mu        sync.Mutex
	listeners map[string]context.CancelFunc
}

// NewExecNativeBackend builds a native Backend that shells out to a
// platform hotkey-listener tool.
func NewExecNativeBackend(listenerArgv []string) Backend {
	return &execNativeBackend{listenerArgv: listenerArgv, listeners: make(map[string]context.CancelFunc)}
}

func (b *execNativeBackend) Supports(chord config.HotkeyBinding) bool {
	return chord.KeyCode != config.NoKeyCode && !chord.Modifiers.Has(config.ModFunction)
}

func (b *execNativeBackend) Register(chord config.HotkeyBinding, onEvent func(edge Edge)) error {
	if !b.Supports(chord) {
		return fmt.Errorf("hotkey: native backend cannot represent chord %s", chordKey(chord))
	}
	if len(b.listenerArgv) == 0 {
		return fmt.Errorf("hotkey: native backend has no listener command configured")
	}

	key := chordKey(chord)
	ctx, cancel := context.WithCancel(context.Background())

	args := append(append([]string(nil), b.listenerArgv[1:]...), chordWireForm(chord))
	cmd := exec.CommandContext(ctx, b.listenerArgv[0], args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("open stdout for native listener %s: %w", key, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start native listener for %s: %w", key, err)
	}

	b.mu.Lock()
	b.listeners[key] = cancel
	b.mu.Unlock()

	go streamEdges(stdout, onEvent)
	go func() { _ = cmd.Wait() }()

	return nil
}

func (b *execNativeBackend) Unregister(chord config.HotkeyBinding) {
	key := chordKey(chord)

	b.mu.Lock()
	cancel := b.listeners[key]
	delete(b.listeners, key)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// streamEdges reads one edge name per line ("pressed" or "released") from
// a listener's stdout and forwards it to onEvent until the pipe closes.
func streamEdges(stdout io.Reader, onEvent func(edge Edge)) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "pressed":
			onEvent(EdgePressed)
		case "released":
			onEvent(EdgeReleased)
		}
	}
}

// chordWireForm renders a chord in the "mod+mod+key" form the platform
// registration tool expects.
func chordWireForm(chord config.HotkeyBinding) string {
	wire := ""
	add := func(name string) {
		if wire != "" {
			wire += "+"
		}
		wire += name
	}
	if chord.Modifiers.Has(config.ModCommand) {
		add("cmd")
	}
	if chord.Modifiers.Has(config.ModOption) {
		add("opt")
	}
	if chord.Modifiers.Has(config.ModControl) {
		add("ctrl")
	}
	if chord.Modifiers.Has(config.ModShift) {
		add("shift")
	}
	if chord.KeyCode != "" && chord.KeyCode != config.NoKeyCode {
		add(chord.KeyCode)
	}
	return wire
}
