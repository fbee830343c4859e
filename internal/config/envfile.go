package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envOverlay holds the raw key=value pairs parsed from config.env.
type envOverlay map[string]string

// parseEnvFile scans a key=value file with `#`-comments, matching the
// well-known config.env keys.
func parseEnvFile(content string) (envOverlay, error) {
	overlay := make(envOverlay)
	scanner := bufio.NewScanner(strings.NewReader(content))

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, fmt.Errorf("config.env line %d: missing '='", lineNo)
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"`)
		if key == "" {
			return nil, fmt.Errorf("config.env line %d: empty key", lineNo)
		}
		overlay[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan config.env: %w", err)
	}
	return overlay, nil
}

// loadEnvFile reads and parses the shared config.env file if present;
// a missing file is not an error.
func loadEnvFile(path string) (envOverlay, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return envOverlay{}, nil
		}
		return nil, fmt.Errorf("read config.env %q: %w", path, err)
	}
	return parseEnvFile(string(content))
}

// applyEnvOverlay overrides fields of s with any matching well-known keys
// present in overlay. Missing keys leave the field untouched; unknown keys
// are ignored for forward-compatibility.
func applyEnvOverlay(s AppSettings, overlay envOverlay) AppSettings {
	if v, ok := overlay["GROQ_API_KEY"]; ok {
		_ = v // not applied: AppSettings holds no secrets, and API keys in config.env are not copied into the secrets store
	}
	if v, ok := overlay["TRANSCRIPTION_LANGUAGE"]; ok && v != "" {
		s.Language = v
	}
	if v, ok := overlay["TRANSCRIPTION_OUTPUT"]; ok && v != "" {
		s.OutputMode = parseOutputModeKey(v)
	}
	if v, ok := overlay["LAUNCH_AT_LOGIN"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.LaunchAtLogin = b
		}
	}
	if v, ok := overlay["WHISPER_MODEL"]; ok && v != "" {
		s.Provider.PrimaryModel = v
	}
	if v, ok := overlay["GROQ_TIMEOUT"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.Provider.TimeoutSeconds = n
		}
	}
	if v, ok := overlay["VOCABULARY"]; ok && v != "" {
		parts := strings.Split(v, ",")
		hints := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				hints = append(hints, p)
			}
		}
		s.VocabularyHints = hints
	}

	s.Hotkeys = applyHotkeyOverlay(s.Hotkeys, overlay)
	return s
}

// parseOutputModeKey maps the config.env TRANSCRIPTION_OUTPUT vocabulary
// ("none | clipboard | paste_on_cursor | clipboard,paste_on_cursor") onto
// the internal OutputMode enum.
func parseOutputModeKey(raw string) OutputMode {
	hasClipboard := strings.Contains(raw, "clipboard")
	hasPaste := strings.Contains(raw, "paste_on_cursor")
	switch {
	case hasClipboard && hasPaste:
		return OutputClipboardPaste
	case hasPaste:
		return OutputPaste
	case hasClipboard:
		return OutputClipboard
	default:
		return OutputNone
	}
}

func applyHotkeyOverlay(bindings []HotkeyBinding, overlay envOverlay) []HotkeyBinding {
	keys := map[string]ActionID{
		"TOGGLE_RECORDING_HOTKEY":   ActionToggle,
		"RETRY_TRANSCRIPTION_HOTKEY": ActionRetry,
		"CANCEL_RECORDING_HOTKEY":   ActionCancel,
	}

	byAction := make(map[ActionID]int, len(bindings))
	for i, b := range bindings {
		byAction[b.ActionID] = i
	}

	for envKey, action := range keys {
		raw, ok := overlay[envKey]
		if !ok || raw == "" {
			continue
		}
		binding, err := parseHotkeyChord(action, raw)
		if err != nil {
			continue
		}
		if idx, exists := byAction[action]; exists {
			bindings[idx] = binding
		} else {
			bindings = append(bindings, binding)
			byAction[action] = len(bindings) - 1
		}
	}
	return bindings
}

// parseHotkeyChord parses the `mod[+mod]*[+key]` wire format, e.g.
// "fn+ctrl" or "cmd+shift+r".
func parseHotkeyChord(action ActionID, raw string) (HotkeyBinding, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "+")
	if len(parts) == 0 {
		return HotkeyBinding{}, fmt.Errorf("empty hotkey chord")
	}

	var mods ModifierMask
	keyCode := NoKeyCode

	for i, part := range parts {
		switch part {
		case "cmd", "command":
			mods |= ModCommand
		case "option", "alt":
			mods |= ModOption
		case "ctrl", "control":
			mods |= ModControl
		case "shift":
			mods |= ModShift
		case "fn", "function":
			mods |= ModFunction
		default:
			if i != len(parts)-1 {
				return HotkeyBinding{}, fmt.Errorf("unrecognized modifier %q", part)
			}
			keyCode = part
		}
	}

	if mods == 0 {
		return HotkeyBinding{}, fmt.Errorf("hotkey chord %q requires at least one modifier", raw)
	}

	return HotkeyBinding{ActionID: action, KeyCode: keyCode, Modifiers: mods}, nil
}
