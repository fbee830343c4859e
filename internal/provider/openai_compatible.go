package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// groqBaseURL is Groq's OpenAI-wire-compatible API base.
const groqBaseURL = "https://api.groq.com/openai/v1"

// openAICompatibleAdapter implements Adapter for any vendor exposing an
// OpenAI-wire-compatible multipart transcription + list-models API (both
// "groq" and "openai" are such vendors; they differ only in base URL and
// default model).
type openAICompatibleAdapter struct {
	kind   Kind
	client *openai.Client
	apiKey string
	model  string
}

// NewGroqAdapter builds an adapter bound to Groq's API.
func NewGroqAdapter(apiKey, model string) Adapter {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &openAICompatibleAdapter{kind: Groq, client: openai.NewClientWithConfig(cfg), apiKey: apiKey, model: model}
}

// NewOpenAIAdapter builds an adapter bound to the official OpenAI API.
func NewOpenAIAdapter(apiKey, model string) Adapter {
	cfg := openai.DefaultConfig(apiKey)
	return &openAICompatibleAdapter{kind: OpenAI, client: openai.NewClientWithConfig(cfg), apiKey: apiKey, model: model}
}

func (a *openAICompatibleAdapter) Kind() Kind { return a.kind }

func (a *openAICompatibleAdapter) Transcribe(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return Response{}, &Error{Kind: a.kind, Class: ClassMissingAPIKey, Err: errors.New("missing API key")}
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	audioReq := openai.AudioRequest{
		Model:    model,
		FilePath: req.AudioPath,
		Prompt:   biasPromptWithVocabulary(req.Prompt, req.Vocabulary),
	}
	if req.Language != "auto" {
		audioReq.Language = req.Language
	}

	resp, err := a.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		return Response{}, classifyError(a.kind, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Response{}, &Error{Kind: a.kind, Class: ClassInvalidResponse, Err: errors.New("empty transcription text")}
	}

	return Response{Text: resp.Text}, nil
}

// biasPromptWithVocabulary prepends configured vocabulary hints to the
// rolling-context prompt. The Whisper-compatible transcription endpoint has
// no dedicated vocabulary field; its documented workaround for biasing
// recognition toward specific terms is seeding the prompt with them, so
// hints are folded in ahead of the chunk's rolling context on every call.
func biasPromptWithVocabulary(prompt string, vocabulary []string) string {
	if len(vocabulary) == 0 {
		return prompt
	}
	hint := strings.Join(vocabulary, ", ")
	if prompt == "" {
		return hint
	}
	return hint + ". " + prompt
}

func (a *openAICompatibleAdapter) CheckHealth(ctx context.Context, timeoutSeconds int) bool {
	if strings.TrimSpace(a.apiKey) == "" {
		return false
	}

	healthCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	_, err := a.client.ListModels(healthCtx)
	return err == nil
}

// classifyError maps a go-openai transport/HTTP error into the provider
// shared provider error taxonomy.
func classifyError(kind Kind, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &Error{Kind: kind, Class: ClassTransient, Body: apiErr.Message, Err: err}
		default:
			return &Error{Kind: kind, Class: ClassTerminal, Body: apiErr.Message, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: kind, Class: ClassTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: kind, Class: ClassTimeout, Err: err}
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return &Error{Kind: kind, Class: ClassTimeout, Err: err}
	}

	return &Error{Kind: kind, Class: ClassNetworkFailure, Err: err}
}
