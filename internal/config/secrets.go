package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// SecretStore persists provider API keys in a 0600 JSON blob.
type SecretStore struct {
	path string
}

// NewSecretStore opens (without yet reading) the secrets blob at path.
func NewSecretStore(path string) *SecretStore {
	return &SecretStore{path: path}
}

// LoadSecret returns the stored value for kind, or "" if unset.
func (s *SecretStore) LoadSecret(kind SecretKind) (string, error) {
	blob, err := s.read()
	if err != nil {
		return "", err
	}
	return blob[string(kind)], nil
}

// SaveSecret atomically stores value under kind.
func (s *SecretStore) SaveSecret(kind SecretKind, value string) error {
	blob, err := s.read()
	if err != nil {
		return err
	}
	blob[string(kind)] = value
	return s.write(blob)
}

// ClearSecret removes kind from the blob, if present.
func (s *SecretStore) ClearSecret(kind SecretKind) error {
	blob, err := s.read()
	if err != nil {
		return err
	}
	delete(blob, string(kind))
	return s.write(blob)
}

func (s *SecretStore) read() (map[string]string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read secrets %q: %w", s.path, err)
	}

	blob := make(map[string]string)
	if err := json.Unmarshal(content, &blob); err != nil {
		return nil, fmt.Errorf("decode secrets %q: %w", s.path, err)
	}
	return blob, nil
}

func (s *SecretStore) write(blob map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure secrets dir: %w", err)
	}

	encoded, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("encode secrets: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending secrets file: %w", err)
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write(encoded); err != nil {
		return fmt.Errorf("write secrets %q: %w", s.path, err)
	}
	return pendingFile.CloseAtomicallyReplace()
}
