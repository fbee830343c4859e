package diagnostics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	events []fakeSinkEvent
}

type fakeSinkEvent struct {
	sessionID *string
	name      string
	payload   string
}

func (f *fakeSink) AppendEvent(ctx context.Context, sessionID *string, name string, payload string) error {
	f.events = append(f.events, fakeSinkEvent{sessionID: sessionID, name: name, payload: payload})
	return nil
}

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labels...).Write(metric))
	return metric.GetCounter().GetValue()
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestCenterEmitUpdatesMetricsAndSink(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	sink := &fakeSink{}
	center := NewCenter(metrics, sink)

	center.Emit(t.Context(), Event{Name: "session_start"})
	center.Emit(t.Context(), Event{Name: "degraded_enter", Fields: map[string]string{"reason": "noInputDevice"}})

	require.Equal(t, float64(1), counterValue(t, metrics.SessionStartTotal))
	require.Equal(t, float64(1), counterVecValue(t, metrics.DegradedEnterTotal, "noInputDevice"))
	require.Len(t, sink.events, 2)
	require.Equal(t, "session_start", sink.events[0].name)
	require.Equal(t, `{"reason":"noInputDevice"}`, sink.events[1].payload)
}

func TestCenterEmitWithoutSinkOnlyUpdatesMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	center := NewCenter(metrics, nil)

	require.NotPanics(t, func() {
		center.Emit(t.Context(), Event{Name: "session_start"})
	})
	require.Equal(t, float64(1), counterValue(t, metrics.SessionStartTotal))
}

func TestCenterRecordMetricObservesLatencyHistogram(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	center := NewCenter(metrics, nil)

	center.RecordMetric(MetricPoint{Name: "session_latency_stop_to_final_transcript_ms", Value: 1500})

	metric := &dto.Metric{}
	require.NoError(t, metrics.SessionLatencyStopToFinalTranscript.Write(metric))
	require.EqualValues(t, 1, metric.GetHistogram().GetSampleCount())
}

func TestCenterTryRecoveryAttemptOpensIncidentOnExhaustion(t *testing.T) {
	center := NewCenter(nil, nil)

	for i := 0; i < recoveryBudgetAttempts; i++ {
		ok, _ := center.TryRecoveryAttempt("audio")
		require.True(t, ok)
	}

	ok, incident := center.TryRecoveryAttempt("audio")
	require.False(t, ok)
	require.Equal(t, "audio", incident.Tag)
	require.Len(t, center.OpenIncidents(), 1)

	center.CloseIncident(incident.ID)
	require.Empty(t, center.OpenIncidents())
}

func TestCenterCloseUnknownIncidentIsNoOp(t *testing.T) {
	center := NewCenter(nil, nil)
	require.NotPanics(t, func() { center.CloseIncident(999) })
}
