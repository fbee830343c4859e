package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ConfigEnvPath resolves the shared `config.env` interop file location.
func ConfigEnvPath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "quedo", "config.env"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "quedo", "config.env"), nil
}

// SettingsPath resolves the primary versioned settings document location,
// under the application-support data directory.
func SettingsPath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	base, err := appSupportDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "settings.yaml"), nil
}

// SecretsPath resolves the 0600 secrets blob location.
func SecretsPath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	base, err := appSupportDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "secrets", "api-keys.json"), nil
}

// appSupportDir resolves `$XDG_DATA_HOME/Quedo` (fallback `~/.local/share/Quedo`).
func appSupportDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "Quedo"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for app-support fallback")
	}
	return filepath.Join(home, ".local", "share", "Quedo"), nil
}

// LegacyHistoryDir resolves the legacy on-disk history tree migrated by the
// history store (`$XDG_DATA_HOME/quedo/history`, fallback
// `~/.local/share/quedo/history`).
func LegacyHistoryDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "quedo", "history"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for legacy history fallback")
	}
	return filepath.Join(home, ".local", "share", "quedo", "history"), nil
}
