package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rbright/quedo/internal/audio"
	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/diagnostics"
	"github.com/rbright/quedo/internal/fsm"
	"github.com/rbright/quedo/internal/history"
	"github.com/rbright/quedo/internal/pipeline"
)

// Start begins a new session: beginSession -> arming -> start capture ->
// waitForFirstFrame(2s) -> recording.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.machine.Snapshot()
	if snap.ActiveSessionID != "" {
		return ErrCannotStart
	}

	sessionID := newSessionID()
	if _, err := c.machine.BeginSession(sessionID); err != nil {
		return err
	}

	if _, err := c.machine.Transition(fsm.PhaseArming, ""); err != nil {
		c.machine.EndSession()
		return err
	}
	c.emitTransition(ctx, fsm.PhaseReady, fsm.PhaseArming)

	if err := c.engine.StartRecording(sessionID); err != nil {
		c.abortToDegraded(ctx, fsm.ReasonNoInputDevice, "captureStartFailed")
		return err
	}

	if !c.engine.WaitForFirstFrame(firstFrameTimeout) {
		c.engine.CancelRecording()
		c.abortToDegraded(ctx, fsm.ReasonNoInputDevice, "noFirstFrame")
		return audio.ErrNoInputDevice
	}

	if _, err := c.machine.Transition(fsm.PhaseRecording, ""); err != nil {
		c.engine.CancelRecording()
		c.abortToDegraded(ctx, fsm.ReasonInternalError, "transitionRejected")
		return err
	}

	c.sessionStarted = time.Now()
	c.emitTransition(ctx, fsm.PhaseArming, fsm.PhaseRecording)
	c.diagnostics.Emit(ctx, diagnostics.Event{Name: "session_start", SessionID: &sessionID})
	return nil
}

// abortToDegraded moves the machine into degraded, ends the session, and
// emits the matching session_start_failed event. Caller must hold c.mu.
func (c *Coordinator) abortToDegraded(ctx context.Context, reason fsm.DegradedReason, failureTag string) {
	_, _ = c.machine.Transition(fsm.PhaseDegraded, reason)
	sessionID := c.machine.Snapshot().ActiveSessionID
	c.machine.EndSession()
	c.diagnostics.Emit(ctx, diagnostics.Event{
		Name:      "session_start_failed",
		SessionID: nonEmptyPtr(sessionID),
		Fields:    map[string]string{"reason": failureTag},
	})
	if c.diagnostics.ShouldNotifyDegraded(string(reason)) {
		c.diagnostics.Emit(ctx, diagnostics.Event{Name: "degraded_enter", Fields: map[string]string{"reason": string(reason)}})
	}
}

// Stop finalizes the active recording and drives it through transcription,
// output delivery, and history persistence.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Snapshot().Phase != fsm.PhaseRecording {
		return errors.New("coordinator: cannot stop outside the recording phase")
	}

	if _, err := c.machine.Transition(fsm.PhaseProcessing, ""); err != nil {
		return err
	}
	c.emitTransition(ctx, fsm.PhaseRecording, fsm.PhaseProcessing)

	captureResult, err := c.engine.StopRecording()
	if err != nil {
		c.abortToDegraded(ctx, fsm.ReasonInternalError, "stopRecordingFailed")
		return err
	}

	settings := c.settings.Current()
	return c.transcribeRouteAndSave(ctx, captureResult.Path, pipelineSettingsFrom(settings), settings, captureResult.DurationMS)
}

// Retry resumes transcription from the same audio artifact after a
// retryAvailable outcome.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Snapshot().Phase != fsm.PhaseRetryAvailable {
		return errors.New("coordinator: retry is only available from retryAvailable")
	}

	audioPath := c.retryAudioPath
	if audioPath == "" {
		return errors.New("coordinator: no pending audio artifact to retry")
	}

	if _, err := c.machine.Transition(fsm.PhaseProcessing, ""); err != nil {
		return err
	}
	c.emitTransition(ctx, fsm.PhaseRetryAvailable, fsm.PhaseProcessing)

	settings := c.settings.Current()
	return c.transcribeRouteAndSave(ctx, audioPath, c.retrySettings, settings, 0)
}

// transcribeRouteAndSave runs transcribe -> [providerFallback] ->
// outputting -> route -> history.saveSession -> ready.
// Caller must hold c.mu and have already transitioned into processing.
func (c *Coordinator) transcribeRouteAndSave(ctx context.Context, audioPath string, pipelineSettings pipeline.Settings, settings config.AppSettings, capturedDurationMS int64) error {
	sessionID := c.machine.Snapshot().ActiveSessionID
	startedAt := c.sessionStarted

	result, err := c.transcriber.Transcribe(ctx, audioPath, pipelineSettings, vocabularyReplacements(settings))
	if err != nil {
		return c.onTranscribeFailure(ctx, audioPath, pipelineSettings, err)
	}

	if result.FallbackUsed {
		_, _ = c.machine.Transition(fsm.PhaseProviderFallback, "")
		c.machine.MarkFallbackAttempted()
		c.emitTransition(ctx, fsm.PhaseProcessing, fsm.PhaseProviderFallback)
		c.diagnostics.Emit(ctx, diagnostics.Event{
			Name:      "provider_switched",
			SessionID: nonEmptyPtr(sessionID),
			Fields:    map[string]string{"primary": string(pipelineSettings.Primary), "fallback": string(pipelineSettings.Fallback)},
		})
	}

	from := fsm.PhaseProcessing
	if result.FallbackUsed {
		from = fsm.PhaseProviderFallback
	}
	if _, err := c.machine.Transition(fsm.PhaseOutputting, ""); err != nil {
		return err
	}
	c.emitTransition(ctx, from, fsm.PhaseOutputting)

	_, routeErr := c.router.Route(ctx, result.Text, settings.OutputMode, settings.DistributionProfile)

	status := "success"
	if routeErr != nil {
		status = "outputError"
	}

	durationMS := capturedDurationMS
	if durationMS == 0 && !startedAt.IsZero() {
		durationMS = time.Since(startedAt).Milliseconds()
	}

	record := history.Record{
		SessionID:    sessionID,
		StartedAt:    startedAt,
		EndedAt:      time.Now(),
		DurationMS:   durationMS,
		Provider:     string(result.ProviderUsed),
		FallbackUsed: result.FallbackUsed,
		Language:     settings.Language,
		OutputMode:   string(settings.OutputMode),
		Status:       status,
		Transcript:   result.Text,
		AudioPath:    audioPath,
		AudioFormat:  "wav",
	}
	if saveErr := c.history.SaveSession(ctx, record); saveErr != nil {
		c.diagnostics.Emit(ctx, diagnostics.Event{Name: "settings_save_error", SessionID: nonEmptyPtr(sessionID)})
	}

	if !startedAt.IsZero() {
		c.diagnostics.RecordMetric(diagnostics.MetricPoint{
			Name:  "session_latency_stop_to_final_transcript_ms",
			Value: float64(time.Since(startedAt).Milliseconds()),
		})
	}

	c.retryAudioPath = ""
	_, _ = c.machine.Transition(fsm.PhaseReady, "")
	c.emitTransition(ctx, fsm.PhaseOutputting, fsm.PhaseReady)
	c.machine.EndSession()

	return routeErr
}

// onTranscribeFailure classifies a transcribe error into retryAvailable
// (pipeline exhausted primary+fallback but the audio artifact is still
// usable) or degraded (no provider adapter configured at all).
func (c *Coordinator) onTranscribeFailure(ctx context.Context, audioPath string, pipelineSettings pipeline.Settings, err error) error {
	sessionID := c.machine.Snapshot().ActiveSessionID

	var retryErr *pipeline.RetryAvailableError
	if errors.As(err, &retryErr) {
		c.machine.SetLastErrorCode(classifyLastErrorCode(err))
		if _, transErr := c.machine.Transition(fsm.PhaseRetryAvailable, ""); transErr != nil {
			return transErr
		}
		c.emitTransition(ctx, fsm.PhaseProcessing, fsm.PhaseRetryAvailable)
		c.retryAudioPath = audioPath
		c.retrySettings = pipelineSettings
		c.diagnostics.Emit(ctx, diagnostics.Event{
			Name:      "session_start_failed",
			SessionID: nonEmptyPtr(sessionID),
			Fields:    map[string]string{"reason": "providerFallbackExhausted"},
		})
		return retryErr
	}

	_ = os.Remove(audioPath)
	c.machine.SetLastErrorCode(classifyLastErrorCode(err))
	c.abortToDegraded(ctx, fsm.ReasonProviderUnavailable, "providerUnavailable")
	return err
}

func classifyLastErrorCode(err error) string {
	var providerUnavailable *pipeline.ProviderUnavailableError
	if errors.As(err, &providerUnavailable) {
		return "providerUnavailable:" + string(providerUnavailable.Kind)
	}
	var retryErr *pipeline.RetryAvailableError
	if errors.As(err, &retryErr) {
		return "bothProvidersFailed"
	}
	return "internalError"
}

// Cancel abandons the active session without persisting a transcript.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.machine.Snapshot()
	switch snap.Phase {
	case fsm.PhaseArming, fsm.PhaseRecording:
		c.engine.CancelRecording()
		if _, err := c.machine.Transition(fsm.PhaseReady, ""); err != nil {
			return err
		}
		c.emitTransition(ctx, snap.Phase, fsm.PhaseReady)
		c.machine.EndSession()
		return nil
	case fsm.PhaseRetryAvailable:
		if c.retryAudioPath != "" {
			_ = os.Remove(c.retryAudioPath)
			c.retryAudioPath = ""
		}
		if _, err := c.machine.Transition(fsm.PhaseReady, ""); err != nil {
			return err
		}
		c.emitTransition(ctx, snap.Phase, fsm.PhaseReady)
		c.machine.EndSession()
		return nil
	default:
		return fmt.Errorf("coordinator: cannot cancel from state %s", snap.Phase)
	}
}

// emitTransition records a lifecycle_transition event for from->to.
func (c *Coordinator) emitTransition(ctx context.Context, from, to fsm.Phase) {
	sessionID := c.machine.Snapshot().ActiveSessionID
	c.diagnostics.Emit(ctx, diagnostics.Event{
		Name:      "lifecycle_transition",
		SessionID: nonEmptyPtr(sessionID),
		Fields:    map[string]string{"from": string(from), "to": string(to)},
	})
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
