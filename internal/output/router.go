// Package output applies transcript commit side effects: clipboard writes
// and, where the output mode and distribution profile allow it, a
// synthetic paste.
package output

import (
	"context"
	"errors"

	"github.com/rbright/quedo/internal/config"
)

// ErrPasteUnavailableInProfile is returned when mode "paste" is requested
// under the sandboxed distribution profile.
var ErrPasteUnavailableInProfile = errors.New("output: synthetic paste unavailable in sandboxed profile")

// ErrAccessibilityPermissionRequired is returned when the synthetic paste
// posture check fails without prompting the user.
var ErrAccessibilityPermissionRequired = errors.New("output: accessibility permission required for synthetic paste")

// ErrSyntheticPasteFailed is returned when the permission check passes but
// dispatching the synthetic key events fails; the clipboard write still
// counts as a successful target.
var ErrSyntheticPasteFailed = errors.New("output: synthetic paste dispatch failed")

// Target names one successfully applied output side effect.
type Target string

const (
	TargetClipboard Target = "clipboard"
	TargetPaste     Target = "paste"
)

// ClipboardWriter sets the system clipboard contents.
type ClipboardWriter interface {
	Write(ctx context.Context, text string) error
}

// PasteDispatcher checks the assistive-control/accessibility posture and
// dispatches synthetic paste key events into the focused application.
type PasteDispatcher interface {
	HasPermission(ctx context.Context) bool
	Dispatch(ctx context.Context) error
}

// Router applies the output policy table for each distribution profile.
type Router struct {
	clipboard ClipboardWriter
	paste     PasteDispatcher
}

// NewRouter builds a Router from its clipboard and paste collaborators.
func NewRouter(clipboard ClipboardWriter, paste PasteDispatcher) *Router {
	return &Router{clipboard: clipboard, paste: paste}
}

// Route writes text to the targets selected by mode and profile, returning
// the list of targets that actually succeeded.
func (r *Router) Route(ctx context.Context, text string, mode config.OutputMode, profile config.DistributionProfile) ([]Target, error) {
	if mode == config.OutputNone {
		return nil, nil
	}

	wantsPaste := mode == config.OutputPaste || mode == config.OutputClipboardPaste
	wantsClipboard := mode == config.OutputClipboard || mode == config.OutputClipboardPaste || wantsPaste

	if wantsPaste && mode == config.OutputPaste && profile == config.ProfileSandboxed {
		return nil, ErrPasteUnavailableInProfile
	}

	var targets []Target
	if wantsClipboard {
		if err := r.clipboard.Write(ctx, text); err != nil {
			return nil, err
		}
		targets = append(targets, TargetClipboard)
	}

	if !wantsPaste {
		return targets, nil
	}
	if profile == config.ProfileSandboxed {
		// clipboard+paste degrades to clipboard-only under sandboxing.
		return targets, nil
	}

	if !r.paste.HasPermission(ctx) {
		return targets, ErrAccessibilityPermissionRequired
	}
	if err := r.paste.Dispatch(ctx); err != nil {
		return targets, ErrSyntheticPasteFailed
	}

	return append(targets, TargetPaste), nil
}
