package config

// Default returns the canonical settings used on first run.
func Default() AppSettings {
	return AppSettings{
		DistributionProfile: ProfileDirect,
		OutputMode:          OutputClipboardPaste,
		Language:            "auto",
		VocabularyHints:     nil,
		Interaction:         InteractionToggle,
		LaunchAtLogin:       false,
		Hotkeys: []HotkeyBinding{
			{ActionID: ActionToggle, KeyCode: NoKeyCode, Modifiers: ModFunction},
			{ActionID: ActionRetry, KeyCode: "r", Modifiers: ModCommand | ModShift},
			{ActionID: ActionCancel, KeyCode: "escape", Modifiers: ModCommand},
		},
		Provider: ProviderConfiguration{
			Primary:        ProviderGroq,
			Fallback:       ProviderOpenAI,
			TimeoutSeconds: 30,
			PrimaryModel:   "whisper-large-v3",
			FallbackModel:  "whisper-1",
		},
		AudioInput:    "default",
		AudioFallback: "default",
	}
}
