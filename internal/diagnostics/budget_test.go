package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecoveryBudgetAllowsFiveAttemptsThenExhausts(t *testing.T) {
	budget := NewRecoveryBudget()
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	budget.now = func() time.Time { return fakeNow }

	for i := 0; i < recoveryBudgetAttempts; i++ {
		require.True(t, budget.TryConsume("audio"), "attempt %d should be allowed", i+1)
	}
	require.False(t, budget.TryConsume("audio"))
}

func TestRecoveryBudgetIsPerTag(t *testing.T) {
	budget := NewRecoveryBudget()
	for i := 0; i < recoveryBudgetAttempts; i++ {
		require.True(t, budget.TryConsume("audio"))
	}
	require.False(t, budget.TryConsume("audio"))
	require.True(t, budget.TryConsume("provider"))
}

func TestRecoveryBudgetRecoversAfterWindowElapses(t *testing.T) {
	budget := NewRecoveryBudget()
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	budget.now = func() time.Time { return fakeNow }

	for i := 0; i < recoveryBudgetAttempts; i++ {
		require.True(t, budget.TryConsume("audio"))
	}
	require.False(t, budget.TryConsume("audio"))

	fakeNow = fakeNow.Add(recoveryBudgetWindow + time.Second)
	require.True(t, budget.TryConsume("audio"))
}

func TestCooldownTrackerSuppressesWithinWindow(t *testing.T) {
	cooldown := NewCooldownTracker()
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cooldown.now = func() time.Time { return fakeNow }

	require.True(t, cooldown.ShouldNotifyDegraded("noInputDevice"))
	require.False(t, cooldown.ShouldNotifyDegraded("noInputDevice"))

	fakeNow = fakeNow.Add(degradedCooldown + time.Second)
	require.True(t, cooldown.ShouldNotifyDegraded("noInputDevice"))
}

func TestCooldownTrackerSilentMicUsesLongerWindow(t *testing.T) {
	cooldown := NewCooldownTracker()
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cooldown.now = func() time.Time { return fakeNow }

	require.True(t, cooldown.ShouldWarnSilentMic())
	require.False(t, cooldown.ShouldWarnSilentMic())

	fakeNow = fakeNow.Add(degradedCooldown + time.Second)
	require.False(t, cooldown.ShouldWarnSilentMic())

	fakeNow = fakeNow.Add(silentMicCooldown)
	require.True(t, cooldown.ShouldWarnSilentMic())
}

func TestCooldownTrackerKeysAreIndependent(t *testing.T) {
	cooldown := NewCooldownTracker()
	require.True(t, cooldown.ShouldNotifyDegraded("noInputDevice"))
	require.True(t, cooldown.ShouldNotifyDegraded("bothProvidersUnhealthy"))
}
