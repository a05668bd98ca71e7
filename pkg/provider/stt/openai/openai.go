// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (Whisper). It implements the stt.Provider interface.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Blubaugh09/SacredDialogue/pkg/provider/stt"
)

const (
	defaultModel    = "whisper-1"
	defaultLanguage = "en"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the transcription model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default BCP-47 language hint used when a recording
// carries none.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements stt.Provider backed by the OpenAI transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
	timeout  time.Duration
}

// New creates a new OpenAI STT Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: p.timeout}))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, rec stt.Recording) (string, error) {
	if len(rec.Audio) == 0 {
		return "", fmt.Errorf("openai stt: audio must not be empty")
	}

	lang := rec.Language
	if lang == "" {
		lang = p.language
	}

	params := oai.AudioTranscriptionNewParams{
		File:     oai.File(bytes.NewReader(rec.Audio), filenameFor(rec.MIMEType), rec.MIMEType),
		Model:    oai.AudioModel(p.model),
		Language: oai.String(lang),
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return resp.Text, nil
}

// filenameFor picks a filename extension matching the recording's MIME type.
// The transcription endpoint infers the container format from the filename.
func filenameFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return "recording.wav"
	case "audio/mpeg", "audio/mp3":
		return "recording.mp3"
	case "audio/ogg":
		return "recording.ogg"
	case "audio/mp4", "audio/m4a":
		return "recording.m4a"
	default:
		return "recording.webm"
	}
}
