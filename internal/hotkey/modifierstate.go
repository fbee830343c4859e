package hotkey

import (
	"context"
	"os/exec"
	"strings"

	"github.com/rbright/quedo/internal/config"
)

// queryTimeout bounds one modifier-state poll's subprocess invocation so a
// hung query tool cannot stall the monitor backend's poll loop.
const queryTimeout = pollInterval * 4

// execModifierState polls current modifier-key state by invoking a
// configured query command once per poll tick and parsing its stdout as a
// comma-separated list of held modifier names. This generalizes the native
// backend's exec-dispatch idiom to a one-shot query instead of a streaming
// listener.
type execModifierState struct {
	argv []string
}

// NewExecModifierState builds a ModifierState backed by a platform
// modifier-query tool. An empty argv always reports no modifiers held.
func NewExecModifierState(argv []string) ModifierState {
	return &execModifierState{argv: argv}
}

func (s *execModifierState) Poll() config.ModifierMask {
	if len(s.argv) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...).Output()
	if err != nil {
		return 0
	}
	return parseModifierMask(string(out))
}

func parseModifierMask(raw string) config.ModifierMask {
	var mask config.ModifierMask
	for _, name := range strings.Split(strings.TrimSpace(raw), ",") {
		switch strings.TrimSpace(name) {
		case "cmd", "command", "super":
			mask |= config.ModCommand
		case "opt", "option", "alt":
			mask |= config.ModOption
		case "ctrl", "control":
			mask |= config.ModControl
		case "shift":
			mask |= config.ModShift
		case "fn", "function":
			mask |= config.ModFunction
		}
	}
	return mask
}
