package diagnostics

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/history"
)

type fakeEventStore struct {
	events  []history.Event
	rollups []history.MetricsRollup
}

func (f *fakeEventStore) RecentEvents(ctx context.Context, limit int) ([]history.Event, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeEventStore) RecentRollups(ctx context.Context, limit int) ([]history.MetricsRollup, error) {
	if len(f.rollups) > limit {
		return f.rollups[:limit], nil
	}
	return f.rollups, nil
}

func readZipEntry(t *testing.T, archivePath, name string) []byte {
	t.Helper()
	reader, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		require.NoError(t, err)
		defer rc.Close()

		buf, err := io.ReadAll(rc)
		require.NoError(t, err)
		return buf
	}
	t.Fatalf("entry %s not found in %s", name, archivePath)
	return nil
}

func TestExportSupportBundleContainsExpectedEntries(t *testing.T) {
	sessionID := "session-1"
	store := &fakeEventStore{
		events: []history.Event{
			{SessionID: &sessionID, EventSeq: 1, Name: "lifecycle_transition", Payload: `{"from":"ready","to":"arming"}`, CreatedAt: time.Now()},
		},
		rollups: []history.MetricsRollup{
			{BucketStart: time.Now(), Name: "quedo_session_start_total", Count: 3, Sum: 3},
		},
	}

	options := ExportOptions{
		Settings:  config.AppSettings{Language: "auto", OutputMode: config.OutputClipboard},
		LogLines:  []string{"line one", "line two"},
		Store:     store,
		OutputDir: t.TempDir(),
	}

	archivePath, err := ExportSupportBundle(t.Context(), options)
	require.NoError(t, err)

	reader, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer reader.Close()

	names := make(map[string]bool)
	for _, file := range reader.File {
		names[file.Name] = true
	}
	require.True(t, names["settings.json"])
	require.True(t, names["log.txt"])
	require.True(t, names["events.json"])
	require.True(t, names["metrics_rollup.json"])

	var settings config.AppSettings
	require.NoError(t, json.Unmarshal(readZipEntry(t, archivePath, "settings.json"), &settings))
	require.Equal(t, "auto", settings.Language)

	var events []history.Event
	require.NoError(t, json.Unmarshal(readZipEntry(t, archivePath, "events.json"), &events))
	require.Len(t, events, 1)
	require.Equal(t, "lifecycle_transition", events[0].Name)
}

func TestExportSupportBundleWithoutStoreOmitsEventEntries(t *testing.T) {
	options := ExportOptions{
		Settings:  config.AppSettings{Language: "auto"},
		LogLines:  nil,
		Store:     nil,
		OutputDir: t.TempDir(),
	}

	archivePath, err := ExportSupportBundle(t.Context(), options)
	require.NoError(t, err)

	reader, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer reader.Close()

	for _, file := range reader.File {
		require.NotEqual(t, "events.json", file.Name)
		require.NotEqual(t, "metrics_rollup.json", file.Name)
	}
}
