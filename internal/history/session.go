package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Record is the full set of fields saveSession persists for one completed
// dictation session.
type Record struct {
	SessionID    string
	StartedAt    time.Time
	EndedAt      time.Time
	DurationMS   int64
	Provider     string
	FallbackUsed bool
	Language     string
	OutputMode   string
	Status       string
	Transcript   string
	AudioPath    string
	AudioFormat  string
}

// Summary is one row of listSessions' result.
type Summary struct {
	SessionID  string
	StartedAt  time.Time
	DurationMS int64
	Provider   string
	Status     string
}

// SaveSession persists record, copies its source audio file into the
// store's media tree as the session's primary recording, and deletes the
// temporary source file. Exactly one media row per session carries
// is_primary = 1.
func (s *Store) SaveSession(ctx context.Context, record Record) error {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at, ended_at, duration_ms, provider, fallback_used, language, output_mode, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			ended_at = excluded.ended_at,
			duration_ms = excluded.duration_ms,
			status = excluded.status
	`, record.SessionID, record.StartedAt.UTC().Format(time.RFC3339Nano), record.EndedAt.UTC().Format(time.RFC3339Nano),
		record.DurationMS, record.Provider, boolToInt(record.FallbackUsed), record.Language, record.OutputMode, record.Status)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if record.Transcript != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_transcripts (session_id, text) VALUES (?, ?)
			ON CONFLICT(session_id) DO UPDATE SET text = excluded.text
		`, record.SessionID, record.Transcript); err != nil {
			return fmt.Errorf("insert transcript: %w", err)
		}
	}

	if record.AudioPath != "" {
		destPath, err := s.copyMedia(record.SessionID, record.AudioPath, record.AudioFormat)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_media (session_id, path, format, is_primary) VALUES (?, ?, ?, 1)
		`, record.SessionID, destPath, record.AudioFormat); err != nil {
			return fmt.Errorf("insert media: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save session: %w", err)
	}

	if record.AudioPath != "" {
		_ = os.Remove(record.AudioPath)
	}
	return nil
}

// copyMedia copies src into storageBase/media/<sessionID>/recording.<format>
// and returns the destination path. The caller is responsible for removing
// the source once the transaction committing the media row succeeds.
func (s *Store) copyMedia(sessionID, src, format string) (string, error) {
	destDir := filepath.Join(s.basePath, "media", sessionID)
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	destPath := filepath.Join(destDir, "recording."+format)
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source media: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create dest media: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	return destPath, nil
}

// AppendEvent inserts an event with a monotonically increasing
// event_seq per session_id, computed as MAX(event_seq)+1.
func (s *Store) AppendEvent(ctx context.Context, sessionID *string, name string, payload string) error {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append event: %w", err)
	}
	defer tx.Rollback()

	var sessionKey any
	if sessionID != nil {
		sessionKey = *sessionID
	}

	var nextSeq int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(event_seq), 0) + 1 FROM session_events WHERE session_id IS ?`, sessionKey)
	if err := row.Scan(&nextSeq); err != nil {
		return fmt.Errorf("compute next event_seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_events (session_id, event_seq, name, payload, created_at) VALUES (?, ?, ?, ?, ?)
	`, sessionKey, nextSeq, name, payload, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return tx.Commit()
}

// ListSessions returns the most recent sessions, newest first, up to limit.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Summary, error) {
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, started_at, duration_ms, provider, status
		  FROM sessions
		 ORDER BY started_at DESC
		 LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var summary Summary
		var startedAt string
		if err := rows.Scan(&summary.SessionID, &startedAt, &summary.DurationMS, &summary.Provider, &summary.Status); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summary.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// TranscriptText returns the stored transcript for sessionID, or nil if the
// session has none.
func (s *Store) TranscriptText(ctx context.Context, sessionID string) (*string, error) {
	ctx = ensureContext(ctx)

	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM session_transcripts WHERE session_id = ?`, sessionID).Scan(&text)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transcript text: %w", err)
	}
	return &text, nil
}

// PrimaryAudioFileURL returns the path of sessionID's primary media file,
// or nil if none exists.
func (s *Store) PrimaryAudioFileURL(ctx context.Context, sessionID string) (*string, error) {
	ctx = ensureContext(ctx)

	var path string
	err := s.db.QueryRowContext(ctx, `
		SELECT path FROM session_media WHERE session_id = ? AND is_primary = 1 LIMIT 1
	`, sessionID).Scan(&path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("primary audio file: %w", err)
	}
	return &path, nil
}

// Event is one row of the session_events table.
type Event struct {
	SessionID *string
	EventSeq  int64
	Name      string
	Payload   string
	CreatedAt time.Time
}

// RecentEvents returns the most recent session-level events across all
// sessions, newest first, up to limit. Used by the diagnostics center's
// support-bundle export, never to surface raw transcripts or audio.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, event_seq, name, payload, created_at
		  FROM session_events
		 ORDER BY created_at DESC
		 LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var sessionID sql.NullString
		var createdAt string
		if err := rows.Scan(&sessionID, &event.EventSeq, &event.Name, &event.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if sessionID.Valid {
			event.SessionID = &sessionID.String
		}
		event.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

// MetricsRollup is one row of the metrics_rollup_1m table.
type MetricsRollup struct {
	BucketStart time.Time
	Name        string
	Count       int64
	Sum         float64
}

// RecentRollups returns the most recent 1-minute metric rollup buckets,
// newest first, up to limit.
func (s *Store) RecentRollups(ctx context.Context, limit int) ([]MetricsRollup, error) {
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket_start, name, count, sum
		  FROM metrics_rollup_1m
		 ORDER BY bucket_start DESC
		 LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent rollups: %w", err)
	}
	defer rows.Close()

	var rollups []MetricsRollup
	for rows.Next() {
		var rollup MetricsRollup
		var bucketStart string
		if err := rows.Scan(&bucketStart, &rollup.Name, &rollup.Count, &rollup.Sum); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		rollup.BucketStart, _ = time.Parse(time.RFC3339Nano, bucketStart)
		rollups = append(rollups, rollup)
	}
	return rollups, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
