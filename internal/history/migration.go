package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Report summarizes one migrateLegacyHistory run.
type Report struct {
	Scanned  int
	Migrated int
	Skipped  int
}

var dateDirPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
var timeDirPattern = regexp.MustCompile(`^\d{6}$`)

// MigrateLegacyHistory imports every time-folder under
// legacyRoot/YYYY-MM-DD/HHMMSS/ containing recording.flac and/or
// recording.wav plus transcription.txt, per the legacy-folder migration
// contract.
func (s *Store) MigrateLegacyHistory(ctx context.Context, legacyRoot string) (Report, error) {
	ctx = ensureContext(ctx)
	var report Report

	dateDirs, err := os.ReadDir(legacyRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, fmt.Errorf("read legacy root: %w", err)
	}

	for _, dateDir := range dateDirs {
		if !dateDir.IsDir() || !dateDirPattern.MatchString(dateDir.Name()) {
			continue
		}

		datePath := filepath.Join(legacyRoot, dateDir.Name())
		timeDirs, err := os.ReadDir(datePath)
		if err != nil {
			continue
		}

		for _, timeDir := range timeDirs {
			if !timeDir.IsDir() || !timeDirPattern.MatchString(timeDir.Name()) {
				continue
			}

			report.Scanned++
			folderPath := filepath.Join(datePath, timeDir.Name())
			migrated, err := s.migrateFolder(ctx, folderPath, dateDir.Name(), timeDir.Name())
			if err != nil || !migrated {
				report.Skipped++
				continue
			}
			report.Migrated++
		}
	}

	return report, nil
}

func (s *Store) migrateFolder(ctx context.Context, folderPath, dateName, timeName string) (bool, error) {
	flacPath := filepath.Join(folderPath, "recording.flac")
	wavPath := filepath.Join(folderPath, "recording.wav")
	transcriptPath := filepath.Join(folderPath, "transcription.txt")

	hasFLAC := fileExists(flacPath)
	hasWAV := fileExists(wavPath)
	if !hasFLAC && !hasWAV {
		return false, nil
	}

	transcriptBytes, err := os.ReadFile(transcriptPath)
	if err != nil {
		transcriptBytes = nil
	}

	sessionID := legacySessionID(folderPath)
	startedAt, err := parseLegacyTimestamp(dateName, timeName)
	if err != nil {
		return false, nil
	}

	primaryPath := wavPath
	primaryFormat := "wav"
	if hasFLAC {
		primaryPath = flacPath
		primaryFormat = "flac"
	}

	destPrimary, err := s.copyMediaPreserving(sessionID, primaryPath, primaryFormat)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migrate folder: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (session_id, started_at, ended_at, duration_ms, provider, fallback_used, language, output_mode, status)
		VALUES (?, ?, ?, 0, 'groq', 0, 'auto', 'clipboard', 'success')
	`, sessionID, startedAt.Format(time.RFC3339Nano), startedAt.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert migrated session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_media (session_id, path, format, is_primary) VALUES (?, ?, ?, 1)
	`, sessionID, destPrimary, primaryFormat); err != nil {
		return false, fmt.Errorf("insert migrated primary media: %w", err)
	}

	if hasFLAC && hasWAV {
		destSecondary, err := s.copyMediaSecondary(sessionID, wavPath, "wav")
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_media (session_id, path, format, is_primary) VALUES (?, ?, 'wav', 0)
		`, sessionID, destSecondary); err != nil {
			return false, fmt.Errorf("insert migrated secondary media: %w", err)
		}
	}

	if len(transcriptBytes) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_transcripts (session_id, text) VALUES (?, ?)
			ON CONFLICT(session_id) DO UPDATE SET text = excluded.text
		`, sessionID, string(transcriptBytes)); err != nil {
			return false, fmt.Errorf("insert migrated transcript: %w", err)
		}
	}

	var nextSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(event_seq), 0) + 1 FROM session_events WHERE session_id = ?`, sessionID).Scan(&nextSeq); err != nil {
		return false, fmt.Errorf("compute migration event seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_events (session_id, event_seq, name, payload, created_at) VALUES (?, ?, 'migration_event', ?, ?)
	`, sessionID, nextSeq, fmt.Sprintf(`{"source":%q,"result":"migrated","primary_format":%q}`, folderPath, primaryFormat), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return false, fmt.Errorf("insert migration event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migrate folder: %w", err)
	}
	return true, nil
}

func (s *Store) copyMediaPreserving(sessionID, src, format string) (string, error) {
	return s.copyMedia(sessionID, src, format)
}

func (s *Store) copyMediaSecondary(sessionID, src, format string) (string, error) {
	destDir := filepath.Join(s.basePath, "media", sessionID)
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	destPath := filepath.Join(destDir, "recording-secondary."+format)

	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read secondary media: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write secondary media: %w", err)
	}
	return destPath, nil
}

// legacySessionID computes the deterministic session id: the first 16
// bytes of SHA-256 of the folder path, hex-encoded.
func legacySessionID(folderPath string) string {
	sum := sha256.Sum256([]byte(folderPath))
	return hex.EncodeToString(sum[:16])
}

func parseLegacyTimestamp(dateName, timeName string) (time.Time, error) {
	layout := "2006-01-02 150405"
	return time.ParseInLocation(layout, dateName+" "+timeName, time.UTC)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
