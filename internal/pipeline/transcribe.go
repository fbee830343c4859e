package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rbright/quedo/internal/provider"
	"github.com/rbright/quedo/internal/transcript"
)

// effectiveOrder returns the (primary, fallback) pair to try first, honoring
// the sticky-fallback window.
func (p *Pipeline) effectiveOrder(settings Settings) (primary, fallback provider.Kind) {
	p.stateMu.Lock()
	sticky := !p.fallbackStickyUntil.IsZero() && p.now().Before(p.fallbackStickyUntil)
	p.stateMu.Unlock()

	if sticky {
		return settings.Fallback, settings.Primary
	}
	return settings.Primary, settings.Fallback
}

// Transcribe runs the full transcription pipeline: chunk the audio, run the
// per-chunk primary/retry/fallback policy maintaining rolling context, then
// assemble and clean up the result.
func (p *Pipeline) Transcribe(ctx context.Context, audioPath string, settings Settings, replacements map[string]string) (Result, error) {
	chunkPaths, cleanup, err := p.chunker.Chunk(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	primaryKind, fallbackKind := p.effectiveOrder(settings)

	var (
		texts        []string
		rollingCtx   string
		usedFallback bool
		lastUsed     provider.Kind
	)

	for _, chunkPath := range chunkPaths {
		req := provider.Request{
			AudioPath:  chunkPath,
			Language:   settings.Language,
			Prompt:     rollingCtx,
			Vocabulary: settings.VocabularyHints,
		}

		text, usedKind, fellBack, err := p.executeChunk(ctx, req, settings, primaryKind, fallbackKind)
		if err != nil {
			return Result{}, err
		}

		texts = append(texts, text)
		lastUsed = usedKind
		if fellBack {
			usedFallback = true
		}
		rollingCtx = lastChars(text, 300)
	}

	assembled := transcript.Assemble(texts)
	cleaned := transcript.Cleanup(assembled, replacements)

	if usedFallback {
		p.markFallbackSuccess(settings)
	}

	return Result{Text: cleaned, ProviderUsed: lastUsed, FallbackUsed: usedFallback, ChunksMerged: len(texts)}, nil
}

// executeChunk implements the strict-ordering retry/fallback policy of
// a single chunk.
func (p *Pipeline) executeChunk(ctx context.Context, req provider.Request, settings Settings, primaryKind, fallbackKind provider.Kind) (string, provider.Kind, bool, error) {
	primaryReq := req
	primaryReq.Model = modelFor(settings, primaryKind)

	text, err := p.attempt(ctx, primaryKind, primaryReq, settings.TimeoutSeconds)
	if err == nil {
		return text, primaryKind, false, nil
	}

	var provErr *provider.Error
	retryable := errors.As(err, &provErr) && provErr.Retryable()

	if retryable {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return "", "", false, ctx.Err()
		}

		text, retryErr := p.attempt(ctx, primaryKind, primaryReq, settings.TimeoutSeconds)
		if retryErr == nil {
			return text, primaryKind, false, nil
		}
		err = retryErr
	}

	fallbackReq := req
	fallbackReq.Model = modelFor(settings, fallbackKind)
	text, fallbackErr := p.attempt(ctx, fallbackKind, fallbackReq, settings.TimeoutSeconds)
	if fallbackErr == nil {
		return text, fallbackKind, true, nil
	}

	return "", "", false, &RetryAvailableError{Primary: primaryKind, Fallback: fallbackKind, Err: fallbackErr}
}

// attempt issues one provider call, racing it against a hard wall-clock
// timeout, racing the call against a timer.
func (p *Pipeline) attempt(ctx context.Context, kind provider.Kind, req provider.Request, timeoutSeconds int) (string, error) {
	adapter, err := p.registry.Get(kind)
	if err != nil {
		return "", &ProviderUnavailableError{Kind: kind}
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	type outcome struct {
		resp provider.Response
		err  error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		resp, err := adapter.Transcribe(callCtx, req)
		resultCh <- outcome{resp: resp, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.resp.Text, res.err
	case <-callCtx.Done():
		return "", &provider.Error{Kind: kind, Class: provider.ClassTimeout, Err: callCtx.Err()}
	}
}

func modelFor(settings Settings, kind provider.Kind) string {
	if kind == settings.Primary {
		return settings.PrimaryModel
	}
	return settings.FallbackModel
}

// lastChars returns the trailing n characters of s (rune-aware), matching
// the rolling-context contract across chunk boundaries.
func lastChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// markFallbackSuccess arms the sticky-fallback window and (re)starts the
// background reprobe of the original primary.
func (p *Pipeline) markFallbackSuccess(settings Settings) {
	p.stateMu.Lock()
	p.fallbackStickyUntil = p.now().Add(stickyWindow)
	if p.probeCancel != nil {
		p.probeCancel()
	}
	probeCtx, cancel := context.WithCancel(context.Background())
	p.probeCancel = cancel
	p.stateMu.Unlock()

	go p.reprobeLoop(probeCtx, settings)
}

// reprobeLoop polls the original primary's health every 60s while the
// sticky window is active; the first success clears the window.
func (p *Pipeline) reprobeLoop(ctx context.Context, settings Settings) {
	ticker := time.NewTicker(reprobeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeGroup.Do(string(settings.Primary), func() (any, error) {
				adapter, err := p.registry.Get(settings.Primary)
				if err != nil {
					return nil, err
				}
				if adapter.CheckHealth(ctx, settings.TimeoutSeconds) {
					p.stateMu.Lock()
					p.fallbackStickyUntil = time.Time{}
					p.stateMu.Unlock()
				}
				return nil, nil
			})

			p.stateMu.Lock()
			cleared := p.fallbackStickyUntil.IsZero()
			p.stateMu.Unlock()
			if cleared {
				return
			}
		}
	}
}
