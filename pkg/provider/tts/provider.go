// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., the OpenAI speech API
// or ElevenLabs) and presents a uniform batch interface: one response text in,
// one encoded audio payload out. Character responses are short (a few
// paragraphs at most), so a batch call keeps the adapter simple and lets the
// synthesized artifact be cached and uploaded as a single object.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple characters may be
// synthesized in parallel.
type Provider interface {
	// Synthesize converts text into an encoded audio payload (typically MP3)
	// spoken with the given voice. Returns an error if the provider cannot be
	// reached, rejects the request, or ctx is cancelled.
	//
	// The returned bytes are a complete, playable artifact; callers own them.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
