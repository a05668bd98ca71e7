package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts"
)

// countingTTS records calls and returns deterministic audio.
type countingTTS struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (c *countingTTS) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return []byte("audio:" + voice.ID + ":" + text), nil
}

func (c *countingTTS) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	return nil, nil
}

func TestSynthesizeCaches(t *testing.T) {
	provider := &countingTTS{}
	s := New(provider)
	voice := character.Voice{ID: "onyx", Speed: 1.3}

	first, err := s.Synthesize(context.Background(), "Greetings!", voice)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	second, err := s.Synthesize(context.Background(), "Greetings!", voice)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(first) != string(second) {
		t.Error("cache returned different audio")
	}
	if got := provider.calls.Load(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}

	// A different voice is a different artifact.
	if _, err := s.Synthesize(context.Background(), "Greetings!", character.Voice{ID: "echo", Speed: 1.3}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("provider called %d times, want 2", got)
	}

	// So is a different speed.
	if _, err := s.Synthesize(context.Background(), "Greetings!", character.Voice{ID: "onyx", Speed: 1.0}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := provider.calls.Load(); got != 3 {
		t.Errorf("provider called %d times, want 3", got)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	s := New(&countingTTS{})
	if _, err := s.Synthesize(context.Background(), "", character.Voice{ID: "onyx"}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestSynthesizeConcurrentDuplicates(t *testing.T) {
	provider := &countingTTS{delay: 20 * time.Millisecond}
	s := New(provider)
	voice := character.Voice{ID: "nova", Speed: 1.3}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Synthesize(context.Background(), "same text", voice); err != nil {
				t.Errorf("Synthesize: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := provider.calls.Load(); got != 1 {
		t.Errorf("provider called %d times for identical concurrent requests, want 1", got)
	}
}

func TestTrySynthesizeSwallowsErrors(t *testing.T) {
	provider := &countingTTS{err: errors.New("tts down")}
	s := New(provider)

	if data := s.TrySynthesize(context.Background(), "text", character.Voice{ID: "onyx"}); data != nil {
		t.Errorf("TrySynthesize = %v, want nil on provider failure", data)
	}
}

func TestCacheEviction(t *testing.T) {
	provider := &countingTTS{}
	s := New(provider, WithCacheSize(2))
	voice := character.Voice{ID: "onyx", Speed: 1.3}

	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.Synthesize(context.Background(), text, voice); err != nil {
			t.Fatalf("Synthesize(%q): %v", text, err)
		}
	}
	if got := s.CachedArtifacts(); got != 2 {
		t.Errorf("cache holds %d artifacts, want 2", got)
	}

	// "one" was evicted; synthesizing it again hits the provider.
	before := provider.calls.Load()
	if _, err := s.Synthesize(context.Background(), "one", voice); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if provider.calls.Load() != before+1 {
		t.Error("evicted artifact should have been re-synthesized")
	}

	// "three" is still cached.
	before = provider.calls.Load()
	if _, err := s.Synthesize(context.Background(), "three", voice); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if provider.calls.Load() != before {
		t.Error("cached artifact should not hit the provider")
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	provider := &countingTTS{delay: time.Second}
	s := New(provider, WithTimeout(10*time.Millisecond))

	_, err := s.Synthesize(context.Background(), "slow", character.Voice{ID: "onyx"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestSynthesizeKeyIsNormalized(t *testing.T) {
	provider := &countingTTS{}
	s := New(provider)
	voice := character.Voice{ID: "onyx", Speed: 1.3}

	first, err := s.Synthesize(context.Background(), "Hello, friend!", voice)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	// Same words modulo case and punctuation reuse the cached artifact.
	second, err := s.Synthesize(context.Background(), "hello friend", voice)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(first) != string(second) {
		t.Error("normalized-equal texts returned different audio")
	}
	if got := provider.calls.Load(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}
}
