package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretStoreSaveLoadClear(t *testing.T) {
	dir := t.TempDir()
	store := NewSecretStore(filepath.Join(dir, "secrets", "api-keys.json"))

	value, err := store.LoadSecret(SecretGroqAPIKey)
	require.NoError(t, err)
	require.Empty(t, value)

	require.NoError(t, store.SaveSecret(SecretGroqAPIKey, "sk-test-123"))

	value, err = store.LoadSecret(SecretGroqAPIKey)
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", value)

	require.NoError(t, store.ClearSecret(SecretGroqAPIKey))
	value, err = store.LoadSecret(SecretGroqAPIKey)
	require.NoError(t, err)
	require.Empty(t, value)
}

func TestSecretStoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets", "api-keys.json")
	store := NewSecretStore(path)

	require.NoError(t, store.SaveSecret(SecretOpenAIAPIKey, "sk-openai"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSecretStorePreservesOtherKeysOnSave(t *testing.T) {
	dir := t.TempDir()
	store := NewSecretStore(filepath.Join(dir, "api-keys.json"))

	require.NoError(t, store.SaveSecret(SecretGroqAPIKey, "groq-value"))
	require.NoError(t, store.SaveSecret(SecretOpenAIAPIKey, "openai-value"))

	groq, err := store.LoadSecret(SecretGroqAPIKey)
	require.NoError(t, err)
	require.Equal(t, "groq-value", groq)
}
