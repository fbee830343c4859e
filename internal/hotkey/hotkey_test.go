package hotkey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quedo/internal/config"
)

type fakeBackend struct {
	mu            sync.Mutex
	supports      func(config.HotkeyBinding) bool
	onEvent       map[string]func(Edge)
	failNext      bool
	failAttempts  int
	registerCalls int
}

func newFakeBackend(supports func(config.HotkeyBinding) bool) *fakeBackend {
	return &fakeBackend{supports: supports, onEvent: make(map[string]func(Edge))}
}

func (f *fakeBackend) Supports(chord config.HotkeyBinding) bool { return f.supports(chord) }

func (f *fakeBackend) Register(chord config.HotkeyBinding, onEvent func(Edge)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.failAttempts > 0 {
		f.failAttempts--
		return errSimulatedFailure
	}
	if f.failNext {
		f.failNext = false
		return errSimulatedFailure
	}
	f.onEvent[chordKey(chord)] = onEvent
	return nil
}

func (f *fakeBackend) Unregister(chord config.HotkeyBinding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.onEvent, chordKey(chord))
}

func (f *fakeBackend) fire(chord config.HotkeyBinding, edge Edge) {
	f.mu.Lock()
	cb := f.onEvent[chordKey(chord)]
	f.mu.Unlock()
	if cb != nil {
		cb(edge)
	}
}

var errSimulatedFailure = &simulatedError{}

type simulatedError struct{}

func (*simulatedError) Error() string { return "simulated backend failure" }

func standardChord(action config.ActionID) config.HotkeyBinding {
	return config.HotkeyBinding{ActionID: action, KeyCode: "r", Modifiers: config.ModCommand | config.ModShift}
}

func TestSetBindingsRegistersEachOnce(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	var fired []config.ActionID
	err := svc.SetBindings([]config.HotkeyBinding{standardChord(config.ActionToggle)}, func(action config.ActionID, edge Edge) {
		fired = append(fired, action)
	})
	require.NoError(t, err)

	native.fire(standardChord(config.ActionToggle), EdgePressed)
	require.Equal(t, []config.ActionID{config.ActionToggle}, fired)
}

func TestSetBindingsRejectsDuplicateChordAcrossActions(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	chordA := standardChord(config.ActionToggle)
	chordB := standardChord(config.ActionRetry)
	chordB.KeyCode = chordA.KeyCode
	chordB.Modifiers = chordA.Modifiers

	err := svc.SetBindings([]config.HotkeyBinding{chordA, chordB}, func(config.ActionID, Edge) {})
	require.ErrorIs(t, err, ErrConflictingBinding)
}

func TestSetBindingsRollsBackOnRegistrationFailure(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	first := config.HotkeyBinding{ActionID: config.ActionToggle, KeyCode: "r", Modifiers: config.ModCommand}
	second := config.HotkeyBinding{ActionID: config.ActionRetry, KeyCode: "t", Modifiers: config.ModCommand}

	require.NoError(t, svc.SetBindings([]config.HotkeyBinding{first}, func(config.ActionID, Edge) {}))

	native.mu.Lock()
	native.failAttempts = 2 // exhausts the initial attempt and the one retry
	native.mu.Unlock()

	err := svc.SetBindings([]config.HotkeyBinding{first, second}, func(config.ActionID, Edge) {})
	require.Error(t, err)

	svc.mu.Lock()
	bindingsLen := len(svc.bindings)
	svc.mu.Unlock()
	require.Equal(t, 0, bindingsLen)
}

func TestSetBindingsRetriesOnceOnTransientRegisterFailure(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	chord := standardChord(config.ActionToggle)

	native.mu.Lock()
	native.failAttempts = 1 // fails once, succeeds on the 300ms retry
	native.mu.Unlock()

	err := svc.SetBindings([]config.HotkeyBinding{chord}, func(config.ActionID, Edge) {})
	require.NoError(t, err)

	native.mu.Lock()
	calls := native.registerCalls
	native.mu.Unlock()
	require.Equal(t, 2, calls)

	svc.mu.Lock()
	bindingsLen := len(svc.bindings)
	svc.mu.Unlock()
	require.Equal(t, 1, bindingsLen)
}

func TestDispatchDebouncesRapidRepeats(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	var count int
	chord := standardChord(config.ActionRetry)
	require.NoError(t, svc.SetBindings([]config.HotkeyBinding{chord}, func(config.ActionID, Edge) { count++ }))

	native.fire(chord, EdgePressed)
	native.fire(chord, EdgePressed)
	require.Equal(t, 1, count)
}

func TestDispatchModifierOnlyChordIsEdgeTriggered(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	svc := NewService(native, monitor, nil)

	chord := config.HotkeyBinding{ActionID: config.ActionToggle, KeyCode: config.NoKeyCode, Modifiers: config.ModFunction}
	var edges []Edge
	require.NoError(t, svc.SetBindings([]config.HotkeyBinding{chord}, func(action config.ActionID, edge Edge) {
		edges = append(edges, edge)
	}))

	monitor.fire(chord, EdgePressed)
	monitor.fire(chord, EdgePressed)
	require.Equal(t, []Edge{EdgePressed}, edges)

	monitor.fire(chord, EdgeReleased)
	time.Sleep(debounceWindow + 10*time.Millisecond)
	monitor.fire(chord, EdgePressed)
	require.Equal(t, []Edge{EdgePressed, EdgeReleased, EdgePressed}, edges)
}

func TestDeactivateUnregistersAllBindings(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	chord := standardChord(config.ActionToggle)
	require.NoError(t, svc.SetBindings([]config.HotkeyBinding{chord}, func(config.ActionID, Edge) {}))
	svc.Deactivate()

	native.mu.Lock()
	_, stillRegistered := native.onEvent[chordKey(chord)]
	native.mu.Unlock()
	require.False(t, stillRegistered)
}

func TestRecoverAfterWakeReRegisters(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	chord := standardChord(config.ActionToggle)
	require.NoError(t, svc.SetBindings([]config.HotkeyBinding{chord}, func(config.ActionID, Edge) {}))

	err := svc.RecoverAfterWake(t.Context())
	require.NoError(t, err)

	native.mu.Lock()
	_, registered := native.onEvent[chordKey(chord)]
	native.mu.Unlock()
	require.True(t, registered)
}

func TestRecoverAfterWakeNoBindingsIsNoOp(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	require.NoError(t, svc.RecoverAfterWake(t.Context()))
}

func TestRecoverAfterWakeHonorsContextCancel(t *testing.T) {
	native := newFakeBackend(func(c config.HotkeyBinding) bool { return true })
	monitor := newFakeBackend(func(c config.HotkeyBinding) bool { return false })
	svc := NewService(native, monitor, nil)

	chord := standardChord(config.ActionToggle)
	require.NoError(t, svc.SetBindings([]config.HotkeyBinding{chord}, func(config.ActionID, Edge) {}))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := svc.RecoverAfterWake(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
