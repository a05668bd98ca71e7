package resilience

import (
	"context"

	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts"
)

var _ tts.Provider = (*TTS)(nil)

// TTS is a tts.Provider that fails over across a chain of real providers.
//
// Voice IDs are provider-specific, so a fallback synthesis may come out in a
// different voice than the character's configured one. That is accepted:
// audible narration in the wrong voice beats silence.
type TTS struct {
	chain *Chain[tts.Provider]
}

// NewTTS builds an empty TTS failover chain.
func NewTTS(cfg BreakerConfig) *TTS {
	return &TTS{chain: NewChain[tts.Provider](cfg)}
}

// Add registers a backend. The first added is the primary.
func (f *TTS) Add(name string, p tts.Provider) {
	f.chain.Add(name, p)
}

// Backends returns the registered backend names in priority order.
func (f *TTS) Backends() []string { return f.chain.Names() }

// Synthesize implements tts.Provider.
func (f *TTS) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	return Do(f.chain, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// ListVoices implements tts.Provider. Voices come from the first healthy
// backend only; mixing voice lists across providers would produce IDs the
// primary cannot synthesize.
func (f *TTS) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return Do(f.chain, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
