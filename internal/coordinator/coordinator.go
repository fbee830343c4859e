// Package coordinator owns the session glue: it
// translates hotkey/IPC events into lifecycle transitions and component
// calls, and is the single serialized owner of session state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/quedo/internal/audio"
	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/diagnostics"
	"github.com/rbright/quedo/internal/fsm"
	"github.com/rbright/quedo/internal/history"
	"github.com/rbright/quedo/internal/hotkey"
	"github.com/rbright/quedo/internal/ipc"
	"github.com/rbright/quedo/internal/output"
	"github.com/rbright/quedo/internal/pipeline"
	"github.com/rbright/quedo/internal/provider"
)

// firstFrameTimeout is the arming-phase budget before capture is declared
// unavailable.
const firstFrameTimeout = 2 * time.Second

// SettingsProvider returns the live settings snapshot the coordinator reads
// at the start of each session, so a reload mid-idle takes effect on the
// next recording without restarting the daemon.
type SettingsProvider interface {
	Current() config.AppSettings
}

// Engine is the subset of *audio.Engine the coordinator drives.
type Engine interface {
	StartRecording(sessionID string) error
	WaitForFirstFrame(timeout time.Duration) bool
	StopRecording() (audio.CaptureResult, error)
	CancelRecording()
}

// Transcriber is the subset of *pipeline.Pipeline the coordinator drives.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, settings pipeline.Settings, replacements map[string]string) (pipeline.Result, error)
}

// Router is the subset of *output.Router the coordinator drives.
type Router interface {
	Route(ctx context.Context, text string, mode config.OutputMode, profile config.DistributionProfile) ([]output.Target, error)
}

// HistorySink is the subset of *history.Store the coordinator drives.
type HistorySink interface {
	SaveSession(ctx context.Context, record history.Record) error
}

// Coordinator is the single serialized owner of one session's lifecycle.
type Coordinator struct {
	machine     *fsm.Machine
	engine      Engine
	transcriber Transcriber
	router      Router
	history     HistorySink
	diagnostics *diagnostics.Center
	settings    SettingsProvider

	mu             sync.Mutex
	sessionStarted time.Time
	retryAudioPath string
	retrySettings  pipeline.Settings
}

// New constructs a Coordinator around its component dependencies.
func New(
	machine *fsm.Machine,
	engine Engine,
	transcriber Transcriber,
	router Router,
	historySink HistorySink,
	diagnosticsCenter *diagnostics.Center,
	settings SettingsProvider,
) *Coordinator {
	return &Coordinator{
		machine:     machine,
		engine:      engine,
		transcriber: transcriber,
		router:      router,
		history:     historySink,
		diagnostics: diagnosticsCenter,
		settings:    settings,
	}
}

// ErrCannotStart reports that a start was requested while a session is
// already active, violating the single-session invariant.
var ErrCannotStart = errors.New("coordinator: a session is already active")

// Snapshot returns the current lifecycle snapshot.
func (c *Coordinator) Snapshot() fsm.Snapshot {
	return c.machine.Snapshot()
}

// Handle serves IPC session commands. history/logs/doctor are not session
// operations and are routed elsewhere by the daemon's top-level dispatcher.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		snap := c.Snapshot()
		return ipc.Response{OK: true, State: string(snap.Phase), Message: string(snap.DegradedReason)}
	case ipc.CommandToggle:
		return c.handleToggle(ctx)
	case ipc.CommandStop:
		return c.handleStop(ctx)
	case ipc.CommandCancel:
		return c.handleCancel(ctx)
	case ipc.CommandRetry:
		return c.handleRetry(ctx)
	default:
		return ipc.Response{OK: false, State: string(c.Snapshot().Phase), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Coordinator) handleToggle(ctx context.Context) ipc.Response {
	snap := c.Snapshot()
	switch snap.Phase {
	case fsm.PhaseReady:
		if err := c.Start(ctx); err != nil {
			return ipc.Response{OK: false, State: string(c.Snapshot().Phase), Error: err.Error()}
		}
		return ipc.Response{OK: true, State: string(c.Snapshot().Phase), Message: "recording started"}
	case fsm.PhaseRecording:
		return c.handleStop(ctx)
	default:
		return ipc.Response{OK: false, State: string(snap.Phase), Error: fmt.Sprintf("cannot toggle from state %s", snap.Phase)}
	}
}

func (c *Coordinator) handleStop(ctx context.Context) ipc.Response {
	if c.Snapshot().Phase != fsm.PhaseRecording {
		snap := c.Snapshot()
		return ipc.Response{OK: false, State: string(snap.Phase), Error: fmt.Sprintf("cannot stop from state %s", snap.Phase)}
	}
	if err := c.Stop(ctx); err != nil {
		var retryErr *pipeline.RetryAvailableError
		if errors.As(err, &retryErr) {
			return ipc.Response{OK: true, State: string(c.Snapshot().Phase), Message: "retry available: " + err.Error()}
		}
		return ipc.Response{OK: false, State: string(c.Snapshot().Phase), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(c.Snapshot().Phase), Message: "transcript delivered"}
}

func (c *Coordinator) handleCancel(ctx context.Context) ipc.Response {
	if err := c.Cancel(ctx); err != nil {
		return ipc.Response{OK: false, State: string(c.Snapshot().Phase), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(c.Snapshot().Phase), Message: "cancelled"}
}

func (c *Coordinator) handleRetry(ctx context.Context) ipc.Response {
	if err := c.Retry(ctx); err != nil {
		var retryErr *pipeline.RetryAvailableError
		if errors.As(err, &retryErr) {
			return ipc.Response{OK: true, State: string(c.Snapshot().Phase), Message: "retry available: " + err.Error()}
		}
		return ipc.Response{OK: false, State: string(c.Snapshot().Phase), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(c.Snapshot().Phase), Message: "transcript delivered"}
}

// HandleHotkeyAction bridges a dispatched hotkey action into the session
// lifecycle, honoring the configured interaction mode for the toggle
// action (toggle fires on press; hold starts on press and stops on
// release).
func (c *Coordinator) HandleHotkeyAction(ctx context.Context, action config.ActionID, edge hotkey.Edge, interaction config.InteractionMode) {
	switch action {
	case config.ActionToggle:
		c.handleToggleEdge(ctx, edge, interaction)
	case config.ActionRetry:
		if edge == hotkey.EdgePressed {
			_ = c.Retry(ctx)
		}
	case config.ActionCancel:
		if edge == hotkey.EdgePressed {
			_ = c.Cancel(ctx)
		}
	}
}

func (c *Coordinator) handleToggleEdge(ctx context.Context, edge hotkey.Edge, interaction config.InteractionMode) {
	switch interaction {
	case config.InteractionHold:
		switch edge {
		case hotkey.EdgePressed:
			if c.Snapshot().Phase == fsm.PhaseReady {
				_ = c.Start(ctx)
			}
		case hotkey.EdgeReleased:
			if c.Snapshot().Phase == fsm.PhaseRecording {
				_ = c.Stop(ctx)
			}
		}
	default: // InteractionToggle
		if edge != hotkey.EdgePressed {
			return
		}
		switch c.Snapshot().Phase {
		case fsm.PhaseReady:
			_ = c.Start(ctx)
		case fsm.PhaseRecording:
			_ = c.Stop(ctx)
		}
	}
}

// vocabularyReplacements is empty by design: VocabularyHints bias the
// provider prompt via pipelineSettingsFrom's VocabularyHints field (threaded
// into provider.Request.Vocabulary and folded into the Whisper prompt), not
// post-transcription text substitution. No config surface exists yet for
// fixed find/replace pairs beyond transcript's built-in hallucination-phrase
// strip.
func vocabularyReplacements(config.AppSettings) map[string]string {
	return nil
}

func pipelineSettingsFrom(settings config.AppSettings) pipeline.Settings {
	return pipeline.Settings{
		Primary:         provider.Kind(settings.Provider.Primary),
		Fallback:        provider.Kind(settings.Provider.Fallback),
		TimeoutSeconds:  settings.Provider.TimeoutSeconds,
		PrimaryModel:    settings.Provider.PrimaryModel,
		FallbackModel:   settings.Provider.FallbackModel,
		Language:        settings.Language,
		VocabularyHints: settings.VocabularyHints,
	}
}

func newSessionID() string {
	return uuid.NewString()
}
