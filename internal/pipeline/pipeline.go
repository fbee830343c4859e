// Package pipeline implements the transcription pipeline: chunking, the
// primary→retry→fallback provider policy with a sticky-fallback window,
// rolling context, and the concurrent connectivity check.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rbright/quedo/internal/provider"
)

// ErrChunkingFailed is returned when the source audio file could not be
// split into chunks.
var ErrChunkingFailed = errors.New("pipeline: chunking failed")

// RetryAvailableError reports that both the primary and fallback provider
// attempts failed; the caller may retry from the same audio artifact.
type RetryAvailableError struct {
	Primary  provider.Kind
	Fallback provider.Kind
	Err      error
}

func (e *RetryAvailableError) Error() string {
	return "pipeline: retry available (primary=" + string(e.Primary) + " fallback=" + string(e.Fallback) + "): " + e.Err.Error()
}

func (e *RetryAvailableError) Unwrap() error { return e.Err }

// ProviderUnavailableError reports that a configured provider kind has no
// registered adapter.
type ProviderUnavailableError struct {
	Kind provider.Kind
}

func (e *ProviderUnavailableError) Error() string {
	return "pipeline: provider unavailable: " + string(e.Kind)
}

// Settings carries the subset of AppSettings the pipeline needs; kept
// decoupled from internal/config so the pipeline can be unit-tested without
// constructing a full settings document.
type Settings struct {
	Primary         provider.Kind
	Fallback        provider.Kind
	TimeoutSeconds  int
	PrimaryModel    string
	FallbackModel   string
	Language        string
	VocabularyHints []string
}

// Result is the outcome of a transcribe call.
type Result struct {
	Text         string
	ProviderUsed provider.Kind
	FallbackUsed bool
	ChunksMerged int
}

// Chunker splits an audio file into ordered chunk paths, each holding at
// most a bounded duration of audio. Implementations own cleanup of any
// temporary files they create.
type Chunker interface {
	Chunk(ctx context.Context, audioPath string) ([]string, func(), error)
}

// stickyWindow is how long a fallback success is preferred for subsequent
// requests.
const stickyWindow = 30 * time.Second

// reprobeInterval is how often the background probe re-checks the original
// primary while the sticky window is active.
const reprobeInterval = 60 * time.Second

// connectivityProbeTimeout bounds each provider's health check during
// ConnectivityCheck.
const connectivityProbeTimeout = 6 * time.Second

// Pipeline owns sticky-fallback state across transcribe calls for one
// configured primary/fallback provider pair.
type Pipeline struct {
	registry *provider.Registry
	chunker  Chunker
	now      func() time.Time

	stateMu             sync.Mutex
	fallbackStickyUntil time.Time
	probeGroup          singleflight.Group
	probeCancel         context.CancelFunc
}

// NewPipeline builds a Pipeline bound to the given provider registry and
// chunker.
func NewPipeline(registry *provider.Registry, chunker Chunker) *Pipeline {
	return &Pipeline{registry: registry, chunker: chunker, now: time.Now}
}
