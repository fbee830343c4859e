package diagnostics

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rbright/quedo/internal/history"
)

// EventSink persists the diagnostics center's events, implemented by
// *history.Store. Kept as an interface so the center can be tested without
// a real database.
type EventSink interface {
	AppendEvent(ctx context.Context, sessionID *string, name string, payload string) error
}

// Event is one opaque diagnostics event, matching the
// "Events emitted to collaborators" wire shape.
type Event struct {
	Name      string
	SessionID *string
	Fields    map[string]string
}

// MetricPoint is one recordMetric call.
type MetricPoint struct {
	Name  string
	Value float64
}

// Incident tracks one open recovery-budget exhaustion or otherwise
// escalated failure, surfaced through doctor/export tooling.
type Incident struct {
	ID  int64
	Tag string
}

// Center is the diagnostics center: event/metric emission,
// the recovery-budget gate the coordinator consults before automatic
// recovery attempts, notification cooldowns, and support-bundle export.
type Center struct {
	metrics  *Metrics
	sink     EventSink
	budget   *RecoveryBudget
	cooldown *CooldownTracker

	incidentSeq atomic.Int64

	mu        sync.Mutex
	incidents map[int64]Incident
}

// NewCenter builds a Center. sink may be nil, in which case events are
// only reflected into Prometheus, never persisted (used by components that
// run before the history store is open).
func NewCenter(metrics *Metrics, sink EventSink) *Center {
	return &Center{
		metrics:   metrics,
		sink:      sink,
		budget:    NewRecoveryBudget(),
		cooldown:  NewCooldownTracker(),
		incidents: make(map[int64]Incident),
	}
}

// Emit records event against both Prometheus and, if configured, the
// history store's session_events log.
func (c *Center) Emit(ctx context.Context, event Event) {
	c.reflectMetric(event)

	if c.sink == nil {
		return
	}
	payload := encodeFields(event.Fields)
	_ = c.sink.AppendEvent(ctx, event.SessionID, event.Name, payload)
}

// reflectMetric updates the Prometheus collector matching event.Name, if
// the diagnostics center tracks one for it.
func (c *Center) reflectMetric(event Event) {
	if c.metrics == nil {
		return
	}

	switch event.Name {
	case "lifecycle_transition":
		c.metrics.LifecycleTransitionTotal.WithLabelValues(event.Fields["from"], event.Fields["to"]).Inc()
	case "degraded_enter":
		c.metrics.DegradedEnterTotal.WithLabelValues(event.Fields["reason"]).Inc()
	case "hotkey_trigger":
		c.metrics.HotkeyTriggerTotal.WithLabelValues(event.Fields["action"]).Inc()
	case "session_start":
		c.metrics.SessionStartTotal.Inc()
	case "session_start_failed":
		c.metrics.SessionStartFailedTotal.WithLabelValues(event.Fields["reason"]).Inc()
	case "provider_switched":
		c.metrics.ProviderSwitchedTotal.WithLabelValues(event.Fields["primary"], event.Fields["fallback"]).Inc()
	case "settings_reloaded":
		c.metrics.SettingsReloadedTotal.WithLabelValues(event.Fields["source"]).Inc()
	case "settings_save_error":
		c.metrics.SettingsSaveErrorTotal.Inc()
	case "migration_event":
		c.metrics.MigrationEventsTotal.WithLabelValues(event.Fields["result"]).Inc()
	case "permissions_recovered":
		c.metrics.PermissionsRecoveredTotal.WithLabelValues(event.Fields["permission"]).Inc()
	case "run_checks_completed":
		c.metrics.RunChecksCompletedTotal.WithLabelValues(event.Fields["outcome"]).Inc()
	}
}

// RecordMetric records an ad-hoc latency/size measurement. Currently only
// the stop-to-final-transcript latency histogram is wired; other names are
// accepted and silently dropped so callers don't need name whitelisting.
func (c *Center) RecordMetric(point MetricPoint) {
	if c.metrics == nil {
		return
	}
	if point.Name == "session_latency_stop_to_final_transcript_ms" {
		c.metrics.SessionLatencyStopToFinalTranscript.Observe(point.Value)
	}
}

// TryRecoveryAttempt consults the rolling recovery budget for tag. It
// returns true when the attempt may proceed. On exhaustion it opens an
// incident and the caller is expected to force degraded(internalError).
func (c *Center) TryRecoveryAttempt(tag string) (ok bool, incident Incident) {
	if c.budget.TryConsume(tag) {
		return true, Incident{}
	}
	return false, c.StartIncident(tag)
}

// ShouldNotifyDegraded reports whether a degraded(reason) notification may
// be shown to the user, honoring the 120s re-notify cooldown.
func (c *Center) ShouldNotifyDegraded(reason string) bool {
	return c.cooldown.ShouldNotifyDegraded(reason)
}

// ShouldWarnSilentMic reports whether a silent-microphone warning may be
// shown, honoring the 300s re-warn cooldown.
func (c *Center) ShouldWarnSilentMic() bool {
	return c.cooldown.ShouldWarnSilentMic()
}

// StartIncident opens an incident for tag and returns its handle.
func (c *Center) StartIncident(tag string) Incident {
	id := c.incidentSeq.Add(1)
	incident := Incident{ID: id, Tag: tag}

	c.mu.Lock()
	c.incidents[id] = incident
	c.mu.Unlock()

	return incident
}

// CloseIncident closes a previously opened incident. Closing an unknown or
// already-closed id is a no-op.
func (c *Center) CloseIncident(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.incidents, id)
}

// OpenIncidents returns the currently open incidents, for doctor/export use.
func (c *Center) OpenIncidents() []Incident {
	c.mu.Lock()
	defer c.mu.Unlock()

	incidents := make([]Incident, 0, len(c.incidents))
	for _, incident := range c.incidents {
		incidents = append(incidents, incident)
	}
	return incidents
}

// *history.Store satisfies EventSink, so the history store can be passed
// to NewCenter as the center's persistence sink.
var _ EventSink = (*history.Store)(nil)

func encodeFields(fields map[string]string) string {
	if len(fields) == 0 {
		return "{}"
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
