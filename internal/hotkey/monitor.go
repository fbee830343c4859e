package hotkey

import (
	"sync"
	"time"

	"github.com/rbright/quedo/internal/config"
)

// ModifierState reports which modifiers are currently held; a real
// implementation polls the platform's modifier-flag API (e.g. a
// CGEventTap-equivalent), kept behind this interface so the poll loop is
// unit-testable without OS hooks.
type ModifierState interface {
	Poll() config.ModifierMask
}

// pollInterval is how often the monitor backend samples modifier state for
// modifier-only and function-modifier chords that the native backend
// cannot represent.
const pollInterval = 20 * time.Millisecond

// monitorBackend polls modifier-flag state to detect modifier-only chords
// and function-modifier chords, edge-triggering on full-set transitions.
type monitorBackend struct {
	state ModifierState

	mu      sync.Mutex
	stopFns map[string]func()
}

// NewMonitorBackend builds an event-monitor Backend polling state.
func NewMonitorBackend(state ModifierState) Backend {
	return &monitorBackend{state: state, stopFns: make(map[string]func())}
}

func (b *monitorBackend) Supports(chord config.HotkeyBinding) bool {
	return chord.KeyCode == config.NoKeyCode || chord.Modifiers.Has(config.ModFunction)
}

func (b *monitorBackend) Register(chord config.HotkeyBinding, onEvent func(edge Edge)) error {
	key := chordKey(chord)
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		active := false
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				matches := b.state.Poll()&chord.Modifiers == chord.Modifiers && chord.Modifiers != 0
				if matches && !active {
					active = true
					onEvent(EdgePressed)
				} else if !matches && active {
					active = false
					onEvent(EdgeReleased)
				}
			}
		}
	}()

	b.mu.Lock()
	b.stopFns[key] = func() { close(stop) }
	b.mu.Unlock()

	return nil
}

func (b *monitorBackend) Unregister(chord config.HotkeyBinding) {
	key := chordKey(chord)

	b.mu.Lock()
	stop := b.stopFns[key]
	delete(b.stopFns, key)
	b.mu.Unlock()

	if stop != nil {
		stop()
	}
}
