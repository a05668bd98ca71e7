// Package openai provides a TTS provider backed by the OpenAI speech API
// (POST /v1/audio/speech). It implements the tts.Provider interface.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts"
)

const defaultModel = "tts-1"

// builtinVoices is the fixed voice catalogue of the OpenAI speech API.
// The API has no list endpoint, so ListVoices serves this table.
var builtinVoices = []tts.VoiceProfile{
	{ID: "alloy", Name: "Alloy", Provider: "openai"},
	{ID: "echo", Name: "Echo", Provider: "openai"},
	{ID: "fable", Name: "Fable", Provider: "openai"},
	{ID: "nova", Name: "Nova", Provider: "openai"},
	{ID: "onyx", Name: "Onyx", Provider: "openai"},
	{ID: "shimmer", Name: "Shimmer", Provider: "openai"},
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the speech model (e.g., "tts-1", "tts-1-hd").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements tts.Provider backed by the OpenAI speech API.
type Provider struct {
	client  oai.Client
	model   string
	timeout time.Duration
}

// New creates a new OpenAI TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	p := &Provider{model: defaultModel}
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

// Synthesize implements tts.Provider. The returned bytes are MP3-encoded.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("openai tts: text must not be empty")
	}
	if voice.ID == "" {
		return nil, fmt.Errorf("openai tts: voice.ID must not be empty")
	}

	params := oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(p.model),
		Input: text,
		Voice: oai.AudioSpeechNewParamsVoice(voice.ID),
	}
	if voice.SpeedFactor != 0 {
		params.Speed = param.NewOpt(voice.SpeedFactor)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio body: %w", err)
	}
	return audio, nil
}

// ListVoices returns the fixed OpenAI speech voice catalogue.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, len(builtinVoices))
	copy(out, builtinVoices)
	return out, nil
}
