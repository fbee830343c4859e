package diagnostics

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/quedo/internal/config"
	"github.com/rbright/quedo/internal/history"
)

// maxExportedEvents bounds how many session-level events the support
// bundle includes.
const maxExportedEvents = 200

// maxExportedRollups bounds how many metric rollup buckets the support
// bundle includes.
const maxExportedRollups = 1440

// EventStore is the subset of *history.Store the support bundle reads.
type EventStore interface {
	RecentEvents(ctx context.Context, limit int) ([]history.Event, error)
	RecentRollups(ctx context.Context, limit int) ([]history.MetricsRollup, error)
}

// ExportOptions configures ExportSupportBundle.
type ExportOptions struct {
	// Settings is redacted by stripping nothing beyond what AppSettings
	// already omits: provider API keys live in the separate secret
	// store and are never part of this struct.
	Settings config.AppSettings
	// LogLines are the last N lines of the active log file, already
	// read by the caller (the diagnostics center does not own log
	// rotation).
	LogLines []string
	Store     EventStore
	OutputDir string
}

// ExportSupportBundle writes a zip archive under options.OutputDir
// containing a redacted settings snapshot, recent log lines, the last 200
// session-level events, and metric rollups. It never includes raw
// transcripts, raw audio, or secrets.
func ExportSupportBundle(ctx context.Context, options ExportOptions) (string, error) {
	if err := os.MkdirAll(options.OutputDir, 0o700); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	archivePath := filepath.Join(options.OutputDir, "quedo-support-"+nowStamp()+".zip")
	archiveFile, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create support bundle: %w", err)
	}
	defer archiveFile.Close()

	writer := zip.NewWriter(archiveFile)

	if err := writeJSONEntry(writer, "settings.json", options.Settings); err != nil {
		return "", err
	}

	if err := writeTextEntry(writer, "log.txt", options.LogLines); err != nil {
		return "", err
	}

	if options.Store != nil {
		events, err := options.Store.RecentEvents(ctx, maxExportedEvents)
		if err != nil {
			return "", fmt.Errorf("load events for export: %w", err)
		}
		if err := writeJSONEntry(writer, "events.json", events); err != nil {
			return "", err
		}

		rollups, err := options.Store.RecentRollups(ctx, maxExportedRollups)
		if err != nil {
			return "", fmt.Errorf("load rollups for export: %w", err)
		}
		if err := writeJSONEntry(writer, "metrics_rollup.json", rollups); err != nil {
			return "", err
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize support bundle: %w", err)
	}

	return archivePath, nil
}

func writeJSONEntry(writer *zip.Writer, name string, value any) error {
	entry, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	encoder := json.NewEncoder(entry)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encode entry %s: %w", name, err)
	}
	return nil
}

func writeTextEntry(writer *zip.Writer, name string, lines []string) error {
	entry, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	for _, line := range lines {
		if _, err := entry.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}
	return nil
}

// exportClock supplies the timestamp in archive filenames; it is a package
// var so the clock can be substituted, and nowStamp is its only reader.
var exportClock = time.Now

func nowStamp() string {
	return exportClock().UTC().Format("20060102T150405.000000000")
}
