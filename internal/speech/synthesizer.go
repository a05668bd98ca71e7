// Package speech turns response text into narration audio. It wraps a
// tts.Provider with the behavior the dialogue flow needs: a bounded in-memory
// cache keyed by (normalized text, voice, speed), per-request timeouts, and
// suppression of duplicate in-flight synthesis for the same artifact.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/similarity"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts"
)

const (
	// DefaultTimeout bounds a single synthesis call. Narration is a
	// best-effort enhancement; a slow TTS backend must not stall the chat.
	DefaultTimeout = 8 * time.Second

	// DefaultCacheSize is the number of audio artifacts kept in memory.
	DefaultCacheSize = 256

	// DefaultSpeed is used when a character's voice has no speed configured.
	DefaultSpeed = 1.3

	// MIMEType of all synthesized artifacts. Every supported TTS backend
	// returns MP3.
	MIMEType = "audio/mpeg"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("speech: text must not be empty")

// Synthesizer produces narration audio for character responses.
// Safe for concurrent use.
type Synthesizer struct {
	provider tts.Provider
	timeout  time.Duration
	cache    *audioCache
	inflight singleflight.Group
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.timeout = d
	}
}

// WithCacheSize overrides DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(s *Synthesizer) {
		s.cache = newAudioCache(n)
	}
}

// New wraps provider.
func New(provider tts.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider: provider,
		timeout:  DefaultTimeout,
		cache:    newAudioCache(DefaultCacheSize),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize returns MP3 audio of text spoken in the character's voice. Cache
// hits return the stored bytes without touching the provider; concurrent
// requests for the same artifact share one provider call.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice character.Voice) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	speed := voice.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	// Keyed on the normalized text so rephrasings that differ only in case or
	// punctuation reuse one artifact.
	normalized := similarity.Normalize(text)
	key := audioKey{text: normalized, voiceID: voice.ID, speed: speed}

	if data, ok := s.cache.get(key); ok {
		return data, nil
	}

	flightKey := fmt.Sprintf("%s|%s|%g", voice.ID, normalized, speed)
	v, err, _ := s.inflight.Do(flightKey, func() (any, error) {
		if data, ok := s.cache.get(key); ok {
			return data, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		data, err := s.provider.Synthesize(callCtx, text, tts.VoiceProfile{
			ID:          voice.ID,
			SpeedFactor: speed,
		})
		if err != nil {
			return nil, fmt.Errorf("speech: synthesize: %w", err)
		}
		s.cache.put(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// TrySynthesize is the best-effort variant used on the response path: failure
// is logged and swallowed, returning nil audio. Text answers must go out even
// when the TTS backend is down.
func (s *Synthesizer) TrySynthesize(ctx context.Context, text string, voice character.Voice) []byte {
	data, err := s.Synthesize(ctx, text, voice)
	if err != nil {
		slog.Warn("narration synthesis failed, continuing without audio",
			"voice", voice.ID, "error", err)
		return nil
	}
	return data
}

// CachedArtifacts reports how many artifacts the cache currently holds.
func (s *Synthesizer) CachedArtifacts() int {
	return s.cache.len()
}
