// Package doctor runs runtime readiness diagnostics for config, audio,
// output tooling, and transcription providers.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rbright/quedo/internal/audio"
	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/provider"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// Lines renders the report as one "[OK|FAIL] name: message" string per
// check, for the CLI's `doctor` command output.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Checks))
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", status, check.Name, check.Message))
	}
	return lines
}

// Run executes config validity, provider health, output tooling, and input
// device checks against the loaded settings.
func Run(ctx context.Context, settings config.AppSettings, registry *provider.Registry) Report {
	var checks []Check

	checks = append(checks, checkConfigValid(settings))
	checks = append(checks, checkAudioSelection(ctx, settings))
	checks = append(checks, checkProviderHealth(ctx, registry, settings.Provider.Primary, settings.Provider.TimeoutSeconds, "provider.primary"))
	if settings.Provider.Fallback != "" {
		checks = append(checks, checkProviderHealth(ctx, registry, settings.Provider.Fallback, settings.Provider.TimeoutSeconds, "provider.fallback"))
	}
	checks = append(checks, checkOutputTooling(settings)...)

	return Report{Checks: checks}
}

func checkConfigValid(settings config.AppSettings) Check {
	issues := config.Validate(settings)
	if len(issues) == 0 {
		return Check{Name: "config", Pass: true, Message: "settings are valid"}
	}
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.Field+": "+issue.Message)
	}
	return Check{Name: "config", Pass: false, Message: strings.Join(messages, "; ")}
}

func checkAudioSelection(ctx context.Context, settings config.AppSettings) Check {
	selection, err := audio.SelectDevice(ctx, settings.AudioInput, settings.AudioFallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkProviderHealth(ctx context.Context, registry *provider.Registry, kind config.ProviderKind, timeoutSeconds int, name string) Check {
	if registry == nil {
		return Check{Name: name, Pass: false, Message: "no provider registry configured"}
	}
	adapter, err := registry.Get(provider.Kind(kind))
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if adapter.CheckHealth(ctx, timeoutSeconds) {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is reachable", kind)}
	}
	return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s health check failed", kind)}
}

func checkOutputTooling(settings config.AppSettings) []Check {
	var checks []Check
	switch settings.OutputMode {
	case config.OutputClipboard, config.OutputClipboardPaste:
		checks = append(checks, checkBinaryPresence("clipboard tool", "wl-copy"))
	}
	switch settings.OutputMode {
	case config.OutputPaste, config.OutputClipboardPaste:
		checks = append(checks, checkBinaryPresence("paste tool", "wtype"))
	}
	return checks
}

func checkBinaryPresence(name, bin string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found %s at %s", bin, path)}
}
