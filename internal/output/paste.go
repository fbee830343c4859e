package output

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// execPasteDispatcher dispatches a synthetic paste keystroke by running a
// configured command (e.g. ["ydotool", "key", "ctrl+v"]). HasPermission
// checks for the command's presence on PATH without prompting the user;
// a real accessibility-prompt posture check belongs to the platform
// integration layer excluded from this module's scope.
type execPasteDispatcher struct {
	argv    []string
	timeout time.Duration
}

// NewExecPasteDispatcher builds a PasteDispatcher that runs argv to
// synthesize a paste keystroke.
func NewExecPasteDispatcher(argv []string) PasteDispatcher {
	return &execPasteDispatcher{argv: argv, timeout: 1200 * time.Millisecond}
}

func (d *execPasteDispatcher) HasPermission(ctx context.Context) bool {
	if len(d.argv) == 0 {
		return false
	}
	_, err := exec.LookPath(d.argv[0])
	return err == nil
}

func (d *execPasteDispatcher) Dispatch(ctx context.Context) error {
	if len(d.argv) == 0 {
		return fmt.Errorf("output: paste command argv cannot be empty")
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return runCommandWithInput(dispatchCtx, d.argv, "")
}
