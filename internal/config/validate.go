package config

import (
	"strconv"
	"strings"
)

var allowedActionIDs = map[ActionID]bool{
	ActionToggle: true,
	ActionRetry:  true,
	ActionCancel: true,
}

// Validate aggregates every invariant violation in AppSettings into a single
// IssueSet, rather than failing on the first problem found.
func Validate(s AppSettings) IssueSet {
	var issues IssueSet

	if s.Provider.Primary == s.Provider.Fallback {
		issues = append(issues, Issue{Field: "provider", Message: "primary and fallback providers must differ"})
	}
	if s.Provider.TimeoutSeconds < 1 || s.Provider.TimeoutSeconds > 120 {
		issues = append(issues, Issue{Field: "provider.timeoutSeconds", Message: "must be between 1 and 120 seconds"})
	}
	if strings.TrimSpace(s.Provider.PrimaryModel) == "" {
		issues = append(issues, Issue{Field: "provider.primaryModel", Message: "must not be empty"})
	}
	if strings.TrimSpace(s.Provider.FallbackModel) == "" {
		issues = append(issues, Issue{Field: "provider.fallbackModel", Message: "must not be empty"})
	}
	if strings.TrimSpace(s.Language) == "" {
		issues = append(issues, Issue{Field: "language", Message: "must not be empty"})
	}

	seenActions := make(map[ActionID]bool, len(s.Hotkeys))
	for i, binding := range s.Hotkeys {
		field := "hotkeys"
		if !allowedActionIDs[binding.ActionID] {
			issues = append(issues, Issue{Field: field, Message: "actionID " + string(binding.ActionID) + " is not in the allowed set"})
		}
		if seenActions[binding.ActionID] {
			issues = append(issues, Issue{Field: field, Message: "duplicate actionID " + string(binding.ActionID)})
		}
		seenActions[binding.ActionID] = true
		if binding.Modifiers == 0 {
			issues = append(issues, Issue{Field: field, Message: "binding at index " + strconv.Itoa(i) + " requires at least one modifier"})
		}
	}

	switch s.OutputMode {
	case OutputNone, OutputClipboard, OutputPaste, OutputClipboardPaste:
	default:
		issues = append(issues, Issue{Field: "outputMode", Message: "unrecognized output mode"})
	}

	switch s.DistributionProfile {
	case ProfileDirect, ProfileSandboxed:
	default:
		issues = append(issues, Issue{Field: "distributionProfile", Message: "unrecognized distribution profile"})
	}

	switch s.Interaction {
	case InteractionToggle, InteractionHold:
	default:
		issues = append(issues, Issue{Field: "interaction", Message: "unrecognized interaction mode"})
	}

	return issues
}
