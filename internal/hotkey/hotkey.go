// Package hotkey implements the two-backend global hotkey service of
// a native chord backend for standard modifier+key
// combinations, and an event-monitor backend for function-modifier chords
// and modifier-only chords the native backend cannot represent.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rbright/quedo/internal/config"
)

// Edge is the direction of a dispatched key event.
type Edge string

const (
	EdgePressed  Edge = "pressed"
	EdgeReleased Edge = "released"
)

// Handler is invoked on every debounced, edge-triggered dispatch.
type Handler func(action config.ActionID, edge Edge)

// ErrConflictingBinding is returned when two bindings register the same
// chord; setBindings rolls back atomically on this error.
var ErrConflictingBinding = errors.New("hotkey: conflicting chord registration")

// debounceWindow suppresses rapid repeat dispatches of the same chord.
const debounceWindow = 200 * time.Millisecond

// wakeBackoffSteps are the delays tried, in order, after a system-wake
// notification before giving up on re-registration for this cycle.
var wakeBackoffSteps = []time.Duration{300 * time.Millisecond, 1000 * time.Millisecond}

// registerRetryDelay is the single retry delay on a transient register
// failure outside of the wake-recovery path.
const registerRetryDelay = 300 * time.Millisecond

// Backend is one of the two chord-registration strategies.
type Backend interface {
	// Register arms chord for action, invoking onEvent on every raw
	// (unsuppressed, undebounced) dispatch.
	Register(chord config.HotkeyBinding, onEvent func(edge Edge)) error
	Unregister(chord config.HotkeyBinding)
	// Supports reports whether this backend can represent chord.
	Supports(chord config.HotkeyBinding) bool
}

// EventLog records register/dispatch/unregister events for post-mortem.
type EventLog interface {
	Append(event string)
}

// edgeKey identifies one (action, edge) pair for debounce bookkeeping, so
// that debouncing a repeated Pressed never also suppresses the Released
// that legitimately follows it.
type edgeKey struct {
	action config.ActionID
	edge   Edge
}

// Service owns chord registration across both backends, debouncing, and
// wake recovery.
type Service struct {
	native  Backend
	monitor Backend
	log     EventLog

	mu       sync.Mutex
	bindings []config.HotkeyBinding
	handler  Handler
	lastFire map[edgeKey]time.Time
	armed    map[config.ActionID]bool
}

// NewService builds a Service from its two backends and an event log.
func NewService(native, monitor Backend, log EventLog) *Service {
	return &Service{
		native:   native,
		monitor:  monitor,
		log:      log,
		lastFire: make(map[edgeKey]time.Time),
		armed:    make(map[config.ActionID]bool),
	}
}

func (s *Service) backendFor(chord config.HotkeyBinding) Backend {
	if chord.KeyCode == config.NoKeyCode || chord.Modifiers.Has(config.ModFunction) {
		return s.monitor
	}
	return s.native
}

// SetBindings replaces the active bindings. A chord conflict is detected
// before anything changes, so the previous bindings stay active. On a
// registration failure the registrations made by this call are undone;
// the previous bindings, already unregistered, are not restored, so no
// binding is left active.
func (s *Service) SetBindings(bindings []config.HotkeyBinding, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]config.ActionID, len(bindings))
	for _, b := range bindings {
		key := chordKey(b)
		if existing, ok := seen[key]; ok && existing != b.ActionID {
			return fmt.Errorf("%w: %s and %s both bind %s", ErrConflictingBinding, existing, b.ActionID, key)
		}
		seen[key] = b.ActionID
	}

	s.deactivateLocked()

	registered := make([]config.HotkeyBinding, 0, len(bindings))
	for _, b := range bindings {
		binding := b
		backend := s.backendFor(binding)
		onEvent := func(edge Edge) { s.dispatch(binding.ActionID, edge) }

		err := backend.Register(binding, onEvent)
		if err != nil {
			s.logAppend(fmt.Sprintf("register failed for %s: %v, retrying once", binding.ActionID, err))
			time.Sleep(registerRetryDelay)
			err = backend.Register(binding, onEvent)
		}
		if err != nil {
			for _, r := range registered {
				s.backendFor(r).Unregister(r)
			}
			s.logAppend(fmt.Sprintf("register failed for %s after retry: %v", binding.ActionID, err))
			return fmt.Errorf("register %s: %w", binding.ActionID, err)
		}
		registered = append(registered, binding)
		s.logAppend(fmt.Sprintf("registered %s (%s)", binding.ActionID, chordKey(binding)))
	}

	s.bindings = registered
	s.handler = handler
	return nil
}

// Deactivate unregisters every active binding.
func (s *Service) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateLocked()
}

func (s *Service) deactivateLocked() {
	for _, b := range s.bindings {
		s.backendFor(b).Unregister(b)
		s.logAppend(fmt.Sprintf("unregistered %s", b.ActionID))
	}
	s.bindings = nil
	s.handler = nil
}

// RecoverAfterWake re-runs registration of the active bindings with a
// 300ms-then-1000ms backoff.
func (s *Service) RecoverAfterWake(ctx context.Context) error {
	s.mu.Lock()
	bindings := append([]config.HotkeyBinding(nil), s.bindings...)
	handler := s.handler
	s.mu.Unlock()

	if len(bindings) == 0 {
		return nil
	}

	var lastErr error
	for _, delay := range wakeBackoffSteps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err := s.SetBindings(bindings, handler); err != nil {
			lastErr = err
			s.logAppend(fmt.Sprintf("wake recovery attempt failed: %v", err))
			continue
		}
		s.logAppend("wake recovery succeeded")
		return nil
	}
	return lastErr
}

// dispatch applies the debounce and edge-triggering policy before invoking
// the registered handler. Debounce is keyed by (action, edge): it suppresses
// repeats of the same edge within the window, never the opposite edge that
// legitimately follows it (e.g. a Released right after its Pressed), since
// swallowing that transition would leave armed stuck and the chord unable
// to ever fire again.
func (s *Service) dispatch(action config.ActionID, edge Edge) {
	s.mu.Lock()
	handler := s.handler
	now := time.Now()
	key := edgeKey{action: action, edge: edge}
	last, seen := s.lastFire[key]
	if seen && now.Sub(last) < debounceWindow {
		s.mu.Unlock()
		return
	}

	if edge == EdgePressed && s.armed[action] {
		s.mu.Unlock()
		return
	}
	if edge == EdgeReleased {
		s.armed[action] = false
	} else {
		s.armed[action] = true
	}
	s.lastFire[key] = now
	s.mu.Unlock()

	s.logAppend(fmt.Sprintf("dispatch %s %s", action, edge))
	if handler != nil {
		handler(action, edge)
	}
}

func (s *Service) logAppend(event string) {
	if s.log != nil {
		s.log.Append(event)
	}
}

// chordKey derives a stable identity for conflict detection, independent of
// which action owns the binding.
func chordKey(b config.HotkeyBinding) string {
	return fmt.Sprintf("%d:%s", b.Modifiers, b.KeyCode)
}
