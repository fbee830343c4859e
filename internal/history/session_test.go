package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeTempAudioFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("fake audio bytes"), 0o600))
	return path
}

func TestSaveSessionPersistsRecordAndCopiesMedia(t *testing.T) {
	store := openTestStore(t)
	audioPath := writeTempAudioFile(t, "clip.wav")

	record := Record{
		SessionID:   "session-1",
		StartedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndedAt:     time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
		DurationMS:  5000,
		Provider:    "groq",
		Language:    "auto",
		OutputMode:  "clipboard",
		Status:      "success",
		Transcript:  "hello world",
		AudioPath:   audioPath,
		AudioFormat: "wav",
	}

	require.NoError(t, store.SaveSession(t.Context(), record))

	_, statErr := os.Stat(audioPath)
	require.True(t, os.IsNotExist(statErr))

	text, err := store.TranscriptText(t.Context(), "session-1")
	require.NoError(t, err)
	require.NotNil(t, text)
	require.Equal(t, "hello world", *text)

	mediaPath, err := store.PrimaryAudioFileURL(t.Context(), "session-1")
	require.NoError(t, err)
	require.NotNil(t, mediaPath)
	_, statErr = os.Stat(*mediaPath)
	require.NoError(t, statErr)
}

func TestTranscriptTextMissingSessionReturnsNil(t *testing.T) {
	store := openTestStore(t)
	text, err := store.TranscriptText(t.Context(), "no-such-session")
	require.NoError(t, err)
	require.Nil(t, text)
}

func TestAppendEventAssignsMonotonicSeq(t *testing.T) {
	store := openTestStore(t)
	sessionID := "session-2"

	require.NoError(t, store.AppendEvent(t.Context(), &sessionID, "lifecycle_transition", `{"from":"ready","to":"arming"}`))
	require.NoError(t, store.AppendEvent(t.Context(), &sessionID, "lifecycle_transition", `{"from":"arming","to":"recording"}`))

	var maxSeq int64
	require.NoError(t, store.db.QueryRow(`SELECT MAX(event_seq) FROM session_events WHERE session_id = ?`, sessionID).Scan(&maxSeq))
	require.Equal(t, int64(2), maxSeq)
}

func TestAppendEventWithoutSessionID(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AppendEvent(t.Context(), nil, "settings_reloaded", `{"source":"file"}`))
}

func TestListSessionsOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)

	older := Record{SessionID: "a", StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Provider: "groq", Language: "auto", OutputMode: "clipboard", Status: "success"}
	newer := Record{SessionID: "b", StartedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Provider: "groq", Language: "auto", OutputMode: "clipboard", Status: "success"}
	require.NoError(t, store.SaveSession(t.Context(), older))
	require.NoError(t, store.SaveSession(t.Context(), newer))

	summaries, err := store.ListSessions(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "b", summaries[0].SessionID)
	require.Equal(t, "a", summaries[1].SessionID)
}
