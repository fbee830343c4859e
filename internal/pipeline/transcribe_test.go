package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/quedo/internal/provider"
)

// fakeAdapter is a scriptable provider.Adapter for pipeline tests.
type fakeAdapter struct {
	kind       provider.Kind
	transcribe func(ctx context.Context, req provider.Request) (provider.Response, error)
	healthy    atomic.Bool
	calls      atomic.Int32
}

func (f *fakeAdapter) Kind() provider.Kind { return f.kind }

func (f *fakeAdapter) Transcribe(ctx context.Context, req provider.Request) (provider.Response, error) {
	f.calls.Add(1)
	return f.transcribe(ctx, req)
}

func (f *fakeAdapter) CheckHealth(ctx context.Context, timeoutSeconds int) bool {
	return f.healthy.Load()
}

// passthroughChunker returns the input path as a single chunk; no cleanup.
type passthroughChunker struct{}

func (passthroughChunker) Chunk(ctx context.Context, audioPath string) ([]string, func(), error) {
	return []string{audioPath}, func() {}, nil
}

func settingsFixture() Settings {
	return Settings{
		Primary:        provider.Groq,
		Fallback:       provider.OpenAI,
		TimeoutSeconds: 5,
		PrimaryModel:   "whisper-large-v3",
		FallbackModel:  "whisper-1",
		Language:       "auto",
	}
}

func TestTranscribePrimarySuccess(t *testing.T) {
	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Text: "hello world"}, nil
	}}
	fallback := &fakeAdapter{kind: provider.OpenAI, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		t.Fatal("fallback should not be called")
		return provider.Response{}, nil
	}}

	p := NewPipeline(provider.NewRegistry(primary, fallback), passthroughChunker{})
	result, err := p.Transcribe(t.Context(), "clip.wav", settingsFixture(), nil)
	require.NoError(t, err)
	require.Equal(t, "hello world", result.Text)
	require.Equal(t, provider.Groq, result.ProviderUsed)
	require.False(t, result.FallbackUsed)
}

func TestTranscribeThreadsVocabularyHintsIntoEveryChunkRequest(t *testing.T) {
	var gotVocabulary []string
	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		gotVocabulary = req.Vocabulary
		return provider.Response{Text: "hello"}, nil
	}}
	fallback := &fakeAdapter{kind: provider.OpenAI}

	settings := settingsFixture()
	settings.VocabularyHints = []string{"kubectl", "gRPC"}

	p := NewPipeline(provider.NewRegistry(primary, fallback), passthroughChunker{})
	_, err := p.Transcribe(t.Context(), "clip.wav", settings, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"kubectl", "gRPC"}, gotVocabulary)
}

func TestTranscribeTerminalErrorSkipsRetryGoesStraightToFallback(t *testing.T) {
	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{}, &provider.Error{Kind: provider.Groq, Class: provider.ClassMissingAPIKey, Err: errors.New("no key")}
	}}
	fallback := &fakeAdapter{kind: provider.OpenAI, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Text: "fallback text"}, nil
	}}

	p := NewPipeline(provider.NewRegistry(primary, fallback), passthroughChunker{})
	result, err := p.Transcribe(t.Context(), "clip.wav", settingsFixture(), nil)
	require.NoError(t, err)
	require.Equal(t, "fallback text", result.Text)
	require.True(t, result.FallbackUsed)
	require.Equal(t, int32(1), primary.calls.Load())
}

func TestTranscribeTransientErrorRetriesPrimaryOnceBeforeFallback(t *testing.T) {
	p := NewPipeline(nil, passthroughChunker{})
	p.now = func() time.Time { return time.Unix(0, 0) }

	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{}, &provider.Error{Kind: provider.Groq, Class: provider.ClassTransient, Err: errors.New("503")}
	}}
	fallback := &fakeAdapter{kind: provider.OpenAI, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Text: "fallback text"}, nil
	}}
	p.registry = provider.NewRegistry(primary, fallback)

	start := time.Now()
	result, err := p.Transcribe(t.Context(), "clip.wav", settingsFixture(), nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, "fallback text", result.Text)
	require.Equal(t, int32(2), primary.calls.Load())
	require.GreaterOrEqual(t, elapsed, time.Second)
}

func TestTranscribeBothFail(t *testing.T) {
	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{}, &provider.Error{Kind: provider.Groq, Class: provider.ClassMissingAPIKey, Err: errors.New("no key")}
	}}
	fallback := &fakeAdapter{kind: provider.OpenAI, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{}, &provider.Error{Kind: provider.OpenAI, Class: provider.ClassMissingAPIKey, Err: errors.New("no key")}
	}}

	p := NewPipeline(provider.NewRegistry(primary, fallback), passthroughChunker{})
	_, err := p.Transcribe(t.Context(), "clip.wav", settingsFixture(), nil)

	var retryErr *RetryAvailableError
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, provider.Groq, retryErr.Primary)
	require.Equal(t, provider.OpenAI, retryErr.Fallback)
}

func TestFallbackSuccessArmsStickyWindowAndReordersNextCall(t *testing.T) {
	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{}, &provider.Error{Kind: provider.Groq, Class: provider.ClassMissingAPIKey, Err: errors.New("no key")}
	}}
	fallback := &fakeAdapter{kind: provider.OpenAI, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		return provider.Response{Text: "fallback text"}, nil
	}}

	p := NewPipeline(provider.NewRegistry(primary, fallback), passthroughChunker{})
	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fakeNow }

	_, err := p.Transcribe(t.Context(), "clip.wav", settingsFixture(), nil)
	require.NoError(t, err)

	primaryKind, fallbackKind := p.effectiveOrder(settingsFixture())
	require.Equal(t, provider.OpenAI, primaryKind)
	require.Equal(t, provider.Groq, fallbackKind)

	fakeNow = fakeNow.Add(31 * time.Second)
	primaryKind, fallbackKind = p.effectiveOrder(settingsFixture())
	require.Equal(t, provider.Groq, primaryKind)
	require.Equal(t, provider.OpenAI, fallbackKind)
}

func TestAttemptTimesOutWhenProviderHangs(t *testing.T) {
	primary := &fakeAdapter{kind: provider.Groq, transcribe: func(ctx context.Context, req provider.Request) (provider.Response, error) {
		<-ctx.Done()
		return provider.Response{}, ctx.Err()
	}}

	p := NewPipeline(provider.NewRegistry(primary), passthroughChunker{})
	_, err := p.attempt(t.Context(), provider.Groq, provider.Request{}, 1)

	var provErr *provider.Error
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, provider.ClassTimeout, provErr.Class)
}

func TestAttemptUnknownProvider(t *testing.T) {
	p := NewPipeline(provider.NewRegistry(), passthroughChunker{})
	_, err := p.attempt(t.Context(), provider.Groq, provider.Request{}, 1)

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestLastChars(t *testing.T) {
	require.Equal(t, "hello", lastChars("hello", 300))
	long := make([]rune, 305)
	for i := range long {
		long[i] = 'a'
	}
	require.Equal(t, 300, len([]rune(lastChars(string(long), 300))))
}

func TestConnectivityCheckBothHealthy(t *testing.T) {
	primary := &fakeAdapter{kind: provider.Groq}
	primary.healthy.Store(true)
	fallback := &fakeAdapter{kind: provider.OpenAI}
	fallback.healthy.Store(false)

	p := NewPipeline(provider.NewRegistry(primary, fallback), passthroughChunker{})
	primaryOK, fallbackOK := p.ConnectivityCheck(t.Context(), provider.Groq, provider.OpenAI)
	require.True(t, primaryOK)
	require.False(t, fallbackOK)
}
