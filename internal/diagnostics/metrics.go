// Package diagnostics implements the diagnostics center:
// event/metric emission, the recovery-budget gate the coordinator consults
// before every automatic recovery attempt, notification cooldowns, and the
// redacted support-bundle export.
package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation emitted by the event bus,
// named after the collaborator-facing lifecycle and session events.
type Metrics struct {
	LifecycleTransitionTotal             *prometheus.CounterVec
	DegradedEnterTotal                   *prometheus.CounterVec
	HotkeyTriggerTotal                   *prometheus.CounterVec
	SessionStartTotal                    prometheus.Counter
	SessionStartFailedTotal              *prometheus.CounterVec
	SessionLatencyStopToFinalTranscript  prometheus.Histogram
	ProviderSwitchedTotal                *prometheus.CounterVec
	SettingsReloadedTotal                *prometheus.CounterVec
	SettingsSaveErrorTotal               prometheus.Counter
	MigrationEventsTotal                 *prometheus.CounterVec
	PermissionsRecoveredTotal            *prometheus.CounterVec
	RunChecksCompletedTotal              *prometheus.CounterVec
}

// NewMetrics registers the diagnostics center's Prometheus collectors
// against registerer, using `promauto.NewCounterVec`/
// `NewHistogramVec` registration idiom.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		LifecycleTransitionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_lifecycle_transition_total",
			Help: "Total number of lifecycle phase transitions, by from/to phase.",
		}, []string{"from", "to"}),
		DegradedEnterTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_degraded_enter_total",
			Help: "Total number of transitions into the degraded phase, by reason.",
		}, []string{"reason"}),
		HotkeyTriggerTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_hotkey_trigger_total",
			Help: "Total number of dispatched hotkey triggers, by action.",
		}, []string{"action"}),
		SessionStartTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "quedo_session_start_total",
			Help: "Total number of dictation sessions started.",
		}),
		SessionStartFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_session_start_failed_total",
			Help: "Total number of dictation sessions that failed to start, by reason.",
		}, []string{"reason"}),
		SessionLatencyStopToFinalTranscript: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quedo_session_latency_stop_to_final_transcript_ms",
			Help:    "Milliseconds between stop and the final cleaned transcript.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		}),
		ProviderSwitchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_provider_switched_total",
			Help: "Total number of provider fallback switches, by primary/fallback kind.",
		}, []string{"primary", "fallback"}),
		SettingsReloadedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_settings_reloaded_total",
			Help: "Total number of settings reload events, by source.",
		}, []string{"source"}),
		SettingsSaveErrorTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "quedo_settings_save_error_total",
			Help: "Total number of failed settings save attempts.",
		}),
		MigrationEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_migration_event_total",
			Help: "Total number of legacy-history migration events, by result.",
		}, []string{"result"}),
		PermissionsRecoveredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_permissions_recovered_total",
			Help: "Total number of times a previously-absent permission was detected as recovered.",
		}, []string{"permission"}),
		RunChecksCompletedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quedo_run_checks_completed_total",
			Help: "Total number of doctor check runs completed, by outcome.",
		}, []string{"outcome"}),
	}
}
