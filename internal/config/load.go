package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Loaded captures the resolved settings path, the materialized settings,
// and whether a settings file already existed on disk.
type Loaded struct {
	Path     string
	Settings AppSettings
	Existed  bool
}

// Load reads the primary YAML settings document, falling back to defaults
// when absent, then overlays any matching keys from the shared config.env
// file. Unknown YAML keys are ignored for forward-compatibility.
func Load(settingsPath, envPath string) (Loaded, error) {
	resolvedSettings, err := SettingsPath(settingsPath)
	if err != nil {
		return Loaded{}, err
	}
	resolvedEnv, err := ConfigEnvPath(envPath)
	if err != nil {
		return Loaded{}, err
	}

	settings := Default()
	existed := false

	content, err := os.ReadFile(resolvedSettings)
	switch {
	case err == nil:
		existed = true
		if err := yaml.Unmarshal(content, &settings); err != nil {
			return Loaded{}, fmt.Errorf("parse settings %q: %w", resolvedSettings, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// first run: keep defaults
	default:
		return Loaded{}, fmt.Errorf("read settings %q: %w", resolvedSettings, err)
	}

	overlay, err := loadEnvFile(resolvedEnv)
	if err != nil {
		return Loaded{}, err
	}
	settings = applyEnvOverlay(settings, overlay)

	return Loaded{Path: resolvedSettings, Settings: settings, Existed: existed}, nil
}

// Save atomically persists settings as the primary YAML document: write to
// a pending temp file, fsync, then rename into place so readers always see
// either the old or the new content.
func Save(settingsPath string, settings AppSettings) error {
	resolved, err := SettingsPath(settingsPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return fmt.Errorf("ensure settings dir: %w", err)
	}

	encoded, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(resolved, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending settings file: %w", err)
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write(encoded); err != nil {
		return fmt.Errorf("write settings %q: %w", resolved, err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace settings %q: %w", resolved, err)
	}
	return nil
}

// RedactedSnapshot returns a map representation of settings suitable for
// diagnostics export: secret references never appear in AppSettings itself,
// so this is a direct, safe field projection.
func RedactedSnapshot(s AppSettings) map[string]any {
	return map[string]any{
		"distributionProfile": string(s.DistributionProfile),
		"outputMode":          string(s.OutputMode),
		"language":            s.Language,
		"interaction":         string(s.Interaction),
		"launchAtLogin":       s.LaunchAtLogin,
		"provider": map[string]any{
			"primary":        string(s.Provider.Primary),
			"fallback":       string(s.Provider.Fallback),
			"timeoutSeconds": s.Provider.TimeoutSeconds,
		},
		"hotkeyCount": len(s.Hotkeys),
	}
}
