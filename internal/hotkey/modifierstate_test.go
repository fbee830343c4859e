package hotkey

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quedo/internal/config"
)

func TestExecModifierStateEmptyArgvReportsNoModifiers(t *testing.T) {
	state := NewExecModifierState(nil)
	require.Equal(t, config.ModifierMask(0), state.Poll())
}

func TestExecModifierStatePollsConfiguredCommand(t *testing.T) {
	state := NewExecModifierState([]string{"echo", "-n", "cmd,shift"})
	require.Equal(t, config.ModCommand|config.ModShift, state.Poll())
}

func TestExecModifierStateMissingBinaryReportsNoModifiers(t *testing.T) {
	state := NewExecModifierState([]string{"definitely-not-a-real-binary"})
	require.Equal(t, config.ModifierMask(0), state.Poll())
}

func TestParseModifierMaskCombinesAliases(t *testing.T) {
	require.Equal(t, config.ModControl|config.ModOption, parseModifierMask("control, alt"))
	require.Equal(t, config.ModifierMask(0), parseModifierMask(""))
	require.Equal(t, config.ModifierMask(0), parseModifierMask("unknown"))
}
