package resolver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore/memstore"
	"github.com/Blubaugh09/SacredDialogue/internal/speech"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/llm"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/tts"
)

// stubLLM returns fixed content and counts completions.
type stubLLM struct {
	content string
	err     error
	calls   atomic.Int64
}

func (s *stubLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func (s *stubLLM) StreamCompletion(context.Context, llm.CompletionRequest) (<-chan llm.Chunk, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.Chunk, len(s.content))
	for _, word := range strings.SplitAfter(s.content, " ") {
		ch <- llm.Chunk{Text: word}
	}
	close(ch)
	return ch, nil
}

// stubTTS returns fixed bytes.
type stubTTS struct {
	err   error
	calls atomic.Int64
}

func (s *stubTTS) Synthesize(_ context.Context, text string, _ tts.VoiceProfile) ([]byte, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("mp3:" + text), nil
}

func (s *stubTTS) ListVoices(context.Context) ([]tts.VoiceProfile, error) { return nil, nil }

func abraham() *character.Character {
	return &character.Character{
		ID:       "abraham",
		Name:     "Abraham",
		Greeting: "Greetings! I am Abraham.",
		Voice:    character.Voice{ID: "onyx", Speed: 1.3},
		DefaultSuggestions: []string{
			"Tell me about your journey from Ur to Canaan",
		},
		Categories: []character.Category{
			{
				Tag:         "journey",
				Keywords:    []string{"journey", "ur", "canaan"},
				Response:    "God called me to leave my home in Ur of the Chaldeans.",
				Suggestions: []string{"Tell me about your time in Egypt"},
			},
		},
	}
}

func TestResolveEmptyQuestion(t *testing.T) {
	r := New(memstore.New())
	for _, q := range []string{"", "   ", "?!..."} {
		if _, err := r.Resolve(context.Background(), abraham(), q, "", nil); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Resolve(%q): err = %v, want ErrEmptyQuestion", q, err)
		}
	}
}

func TestResolveExactCacheHit(t *testing.T) {
	store := memstore.New()
	model := &stubLLM{content: "A fresh answer."}
	r := New(store, WithLLM(model))
	char := abraham()
	ctx := context.Background()

	first, err := r.Resolve(ctx, char, "How did you feel on Mount Moriah?", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.Provenance != ProvenanceGenerated {
		t.Fatalf("first Provenance = %q, want generated", first.Provenance)
	}

	// Same question modulo case and punctuation.
	second, err := r.Resolve(ctx, char, "how did you feel on mount MORIAH", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.Provenance != ProvenanceCache {
		t.Errorf("second Provenance = %q, want cache", second.Provenance)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("cache hit returned a different conversation: %q vs %q", second.ConversationID, first.ConversationID)
	}
	if second.Response != "A fresh answer." {
		t.Errorf("Response = %q", second.Response)
	}
	if got := model.calls.Load(); got != 1 {
		t.Errorf("LLM called %d times, want 1", got)
	}
}

func TestResolveFuzzyCacheHit(t *testing.T) {
	store := memstore.New()
	model := &stubLLM{content: "Sarah laughed, and then believed."}
	r := New(store, WithLLM(model))
	char := abraham()
	ctx := context.Background()

	if _, err := r.Resolve(ctx, char, "what did sarah think about the promise", "", nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// One token differs out of seven shared: well above the 0.7 threshold.
	got, err := r.Resolve(ctx, char, "what did sarah feel about the promise", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceCache {
		t.Errorf("Provenance = %q, want cache", got.Provenance)
	}
	if got := model.calls.Load(); got != 1 {
		t.Errorf("LLM called %d times, want 1", got)
	}
}

func TestResolveBelowThresholdGenerates(t *testing.T) {
	store := memstore.New()
	model := &stubLLM{content: "They are different questions."}
	r := New(store, WithLLM(model))
	char := abraham()
	ctx := context.Background()

	if _, err := r.Resolve(ctx, char, "tell me about isaac", "", nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// 3 of 5 union tokens shared: 0.6, below threshold.
	got, err := r.Resolve(ctx, char, "tell me about ishmael", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceGenerated {
		t.Errorf("Provenance = %q, want generated", got.Provenance)
	}
	if got := model.calls.Load(); got != 2 {
		t.Errorf("LLM called %d times, want 2", got)
	}
}

func TestResolveLLMFailureFallsBackToKeywords(t *testing.T) {
	store := memstore.New()
	r := New(store, WithLLM(&stubLLM{err: errors.New("model down")}))
	char := abraham()

	got, err := r.Resolve(context.Background(), char, "Tell me about your journey", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceFallback {
		t.Errorf("Provenance = %q, want fallback", got.Provenance)
	}
	if got.Response != char.Categories[0].Response {
		t.Errorf("Response = %q, want the journey response", got.Response)
	}
	// Matched static responses are cached.
	if got.ConversationID == "" {
		t.Error("matched fallback should be persisted")
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0] != "Tell me about your time in Egypt" {
		t.Errorf("Suggestions = %v", got.Suggestions)
	}
}

func TestResolveGenericFallbackNotPersisted(t *testing.T) {
	store := memstore.New()
	r := New(store) // no LLM
	char := abraham()

	got, err := r.Resolve(context.Background(), char, "what is the weather today", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceFallback {
		t.Errorf("Provenance = %q, want fallback", got.Provenance)
	}
	if got.Response != character.FallbackResponse {
		t.Errorf("Response = %q", got.Response)
	}
	if got.ConversationID != "" {
		t.Error("generic fallback must not be persisted")
	}
	if _, err := store.FindExact(context.Background(), char.ID, "what is the weather today"); !errors.Is(err, convstore.ErrNotFound) {
		t.Errorf("generic fallback was persisted: err = %v", err)
	}
}

func TestResolveNarratesAndStoresAudio(t *testing.T) {
	store := memstore.New()
	synth := speech.New(&stubTTS{})
	r := New(store, WithLLM(&stubLLM{content: "An answer worth hearing."}), WithSynthesizer(synth))
	char := abraham()
	ctx := context.Background()

	got, err := r.Resolve(ctx, char, "how many stars did God show you", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.AudioPath == "" {
		t.Fatal("AudioPath empty, want stored narration")
	}
	obj, err := store.GetAudio(ctx, got.AudioPath)
	if err != nil {
		t.Fatalf("GetAudio: %v", err)
	}
	if obj.MIMEType != speech.MIMEType {
		t.Errorf("MIMEType = %q", obj.MIMEType)
	}
	rec, err := store.GetByID(ctx, got.ConversationID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.AudioPath != got.AudioPath {
		t.Errorf("record AudioPath = %q, result = %q", rec.AudioPath, got.AudioPath)
	}

	// A cache hit serves the same artifact.
	again, err := r.Resolve(ctx, char, "How many stars did God show you?", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.AudioPath != got.AudioPath {
		t.Errorf("cache hit AudioPath = %q, want %q", again.AudioPath, got.AudioPath)
	}
}

func TestResolveTTSFailureStillAnswers(t *testing.T) {
	store := memstore.New()
	synth := speech.New(&stubTTS{err: errors.New("tts down")})
	r := New(store, WithLLM(&stubLLM{content: "Text without narration."}), WithSynthesizer(synth))

	got, err := r.Resolve(context.Background(), abraham(), "a question without audio", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.AudioPath != "" {
		t.Errorf("AudioPath = %q, want empty on TTS failure", got.AudioPath)
	}
	if got.Response != "Text without narration." {
		t.Errorf("Response = %q", got.Response)
	}
}

func TestResolveRegeneratesMissingAudio(t *testing.T) {
	store := memstore.New()
	provider := &stubTTS{}
	r := New(store, WithSynthesizer(speech.New(provider)))
	char := abraham()
	ctx := context.Background()

	// A record pointing at an audio object that no longer exists.
	rec := &convstore.Conversation{
		ID:                 "stale",
		CharacterID:        char.ID,
		Question:           "Where was Salem?",
		NormalizedQuestion: "where was salem",
		Response:           "Salem was the city of Melchizedek.",
		AudioPath:          "responses/stale.mp3",
		CreatedAt:          time.Now(),
	}
	if err := store.Persist(ctx, rec); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, err := r.Resolve(ctx, char, "Where was Salem?", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceCache {
		t.Fatalf("Provenance = %q, want cache", got.Provenance)
	}
	if got.AudioPath == "" {
		t.Fatal("missing audio should have been regenerated")
	}
	if _, err := store.GetAudio(ctx, got.AudioPath); err != nil {
		t.Errorf("regenerated audio not stored: %v", err)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("TTS called %d times, want 1", provider.calls.Load())
	}
}

func TestResolveStreamGeneration(t *testing.T) {
	store := memstore.New()
	r := New(store, WithLLM(&stubLLM{content: "The Lord provides in every wilderness."}))
	char := abraham()

	events, err := r.ResolveStream(context.Background(), char, "does the Lord provide", "", nil)
	if err != nil {
		t.Fatalf("ResolveStream: %v", err)
	}

	var assembled strings.Builder
	var final *Result
	for ev := range events {
		assembled.WriteString(ev.Delta)
		if ev.Done {
			final = ev.Result
		}
	}
	if final == nil {
		t.Fatal("stream ended without a Done event")
	}
	if assembled.String() != "The Lord provides in every wilderness." {
		t.Errorf("assembled = %q", assembled.String())
	}
	if final.Response != assembled.String() {
		t.Errorf("final Response = %q", final.Response)
	}
	if final.Provenance != ProvenanceGenerated {
		t.Errorf("Provenance = %q", final.Provenance)
	}
	if final.ConversationID == "" {
		t.Error("streamed generation should be persisted")
	}
}

func TestResolveStreamCacheHit(t *testing.T) {
	store := memstore.New()
	model := &stubLLM{content: "Generated once."}
	r := New(store, WithLLM(model))
	char := abraham()
	ctx := context.Background()

	if _, err := r.Resolve(ctx, char, "a cached question", "", nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	events, err := r.ResolveStream(ctx, char, "a cached question", "", nil)
	if err != nil {
		t.Fatalf("ResolveStream: %v", err)
	}
	var final *Result
	for ev := range events {
		if ev.Done {
			final = ev.Result
		}
	}
	if final == nil || final.Provenance != ProvenanceCache {
		t.Fatalf("final = %+v, want a cache hit", final)
	}
	if got := model.calls.Load(); got != 1 {
		t.Errorf("LLM called %d times, want 1", got)
	}
}

func TestResolveStreamFailureFallsBack(t *testing.T) {
	store := memstore.New()
	r := New(store, WithLLM(&stubLLM{err: errors.New("model down")}))
	char := abraham()

	events, err := r.ResolveStream(context.Background(), char, "tell me about your journey", "", nil)
	if err != nil {
		t.Fatalf("ResolveStream: %v", err)
	}
	var final *Result
	for ev := range events {
		if ev.Done {
			final = ev.Result
		}
	}
	if final == nil || final.Provenance != ProvenanceFallback {
		t.Fatalf("final = %+v, want a fallback result", final)
	}
	if final.Response != char.Categories[0].Response {
		t.Errorf("Response = %q", final.Response)
	}
}

func TestPrepareGreeting(t *testing.T) {
	store := memstore.New()
	provider := &stubTTS{}
	r := New(store, WithSynthesizer(speech.New(provider)))
	char := abraham()
	ctx := context.Background()

	path := r.PrepareGreeting(ctx, char)
	if path != "greetings/abraham.mp3" {
		t.Fatalf("path = %q", path)
	}
	if _, err := store.GetAudio(ctx, path); err != nil {
		t.Fatalf("GetAudio: %v", err)
	}

	// Second call reuses the stored object.
	if again := r.PrepareGreeting(ctx, char); again != path {
		t.Errorf("second call = %q", again)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("TTS called %d times, want 1", provider.calls.Load())
	}
}

func TestResolveHistoryPassedToLLM(t *testing.T) {
	store := memstore.New()
	var captured llm.CompletionRequest
	model := &captureLLM{content: "I remember.", captured: &captured}
	r := New(store, WithLLM(model))

	history := []Turn{
		{Role: "user", Text: "Who was your father?"},
		{Role: "assistant", Text: "Terah of Ur."},
	}
	if _, err := r.Resolve(context.Background(), abraham(), "And your wife?", "", history); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(captured.Messages) != 3 {
		t.Fatalf("LLM got %d messages, want 3", len(captured.Messages))
	}
	if captured.Messages[0].Role != llm.RoleUser || captured.Messages[1].Role != llm.RoleAssistant {
		t.Errorf("history roles = %q, %q", captured.Messages[0].Role, captured.Messages[1].Role)
	}
	if captured.Messages[2].Content != "And your wife?" {
		t.Errorf("last message = %q", captured.Messages[2].Content)
	}
	if !strings.Contains(captured.SystemPrompt, "You are Abraham") {
		t.Errorf("system prompt = %q", captured.SystemPrompt)
	}
}

// captureLLM records the request it receives.
type captureLLM struct {
	content  string
	captured *llm.CompletionRequest
}

func (c *captureLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	*c.captured = req
	return &llm.CompletionResponse{Content: c.content}, nil
}

func (c *captureLLM) StreamCompletion(_ context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	*c.captured = req
	ch := make(chan llm.Chunk, 1)
	ch <- llm.Chunk{Text: c.content}
	close(ch)
	return ch, nil
}

// faultyStore wraps a working store and fails selected operations.
type faultyStore struct {
	convstore.Store
	lookupErr  error
	persistErr error
}

func (s *faultyStore) FindExact(ctx context.Context, characterID, normalizedQuestion string) (*convstore.Conversation, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.Store.FindExact(ctx, characterID, normalizedQuestion)
}

func (s *faultyStore) ListRecent(ctx context.Context, characterID string, limit int) ([]convstore.Conversation, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.Store.ListRecent(ctx, characterID, limit)
}

func (s *faultyStore) Persist(ctx context.Context, c *convstore.Conversation) error {
	if s.persistErr != nil {
		return s.persistErr
	}
	return s.Store.Persist(ctx, c)
}

func TestResolveStoreFailureIsACacheMiss(t *testing.T) {
	store := &faultyStore{Store: memstore.New(), lookupErr: errors.New("connection refused")}
	r := New(store) // no LLM, so the static tables are the last resort
	char := abraham()

	got, err := r.Resolve(context.Background(), char, "Tell me about your journey", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceFallback {
		t.Errorf("Provenance = %q, want fallback", got.Provenance)
	}
	if got.Response != char.Categories[0].Response {
		t.Errorf("Response = %q, want the journey response", got.Response)
	}
}

func TestResolveStoreFailureStillGenerates(t *testing.T) {
	store := &faultyStore{Store: memstore.New(), lookupErr: errors.New("connection refused")}
	r := New(store, WithLLM(&stubLLM{content: "An answer despite the outage."}))

	got, err := r.Resolve(context.Background(), abraham(), "will the famine end", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Provenance != ProvenanceGenerated {
		t.Errorf("Provenance = %q, want generated", got.Provenance)
	}
	if got.Response != "An answer despite the outage." {
		t.Errorf("Response = %q", got.Response)
	}
}

func TestResolvePersistFailureStillAnswers(t *testing.T) {
	store := &faultyStore{Store: memstore.New(), persistErr: errors.New("write refused")}
	r := New(store, WithLLM(&stubLLM{content: "An answer that outlives the outage."}))
	char := abraham()
	ctx := context.Background()

	got, err := r.Resolve(ctx, char, "will the covenant endure", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Response != "An answer that outlives the outage." {
		t.Errorf("Response = %q", got.Response)
	}
	if got.Provenance != ProvenanceGenerated {
		t.Errorf("Provenance = %q, want generated", got.Provenance)
	}
	if got.ConversationID != "" {
		t.Errorf("ConversationID = %q, want empty when persistence failed", got.ConversationID)
	}
	if _, err := store.Store.FindExact(ctx, char.ID, "will the covenant endure"); !errors.Is(err, convstore.ErrNotFound) {
		t.Errorf("record slipped past the failing store: err = %v", err)
	}
}

func TestResolvePersistsSessionID(t *testing.T) {
	store := memstore.New()
	r := New(store, WithLLM(&stubLLM{content: "A remembered answer."}))
	ctx := context.Background()

	got, err := r.Resolve(ctx, abraham(), "where is the land of promise", "9e5d2c6e-5d6f-4f20-9c57-0f6f2a8a1b11", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rec, err := store.GetByID(ctx, got.ConversationID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.SessionID != "9e5d2c6e-5d6f-4f20-9c57-0f6f2a8a1b11" {
		t.Errorf("SessionID = %q", rec.SessionID)
	}
}

// chunkLLM streams a fixed chunk sequence.
type chunkLLM struct {
	chunks []llm.Chunk
}

func (c *chunkLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("streaming only")
}

func (c *chunkLLM) StreamCompletion(context.Context, llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk, len(c.chunks))
	for _, k := range c.chunks {
		ch <- k
	}
	close(ch)
	return ch, nil
}

func TestResolveStreamMidStreamErrorFallsBack(t *testing.T) {
	store := memstore.New()
	model := &chunkLLM{chunks: []llm.Chunk{
		{Text: "I was born in"},
		{FinishReason: "error"},
	}}
	r := New(store, WithLLM(model))
	char := abraham()
	ctx := context.Background()

	events, err := r.ResolveStream(ctx, char, "tell me about your journey", "", nil)
	if err != nil {
		t.Fatalf("ResolveStream: %v", err)
	}
	var final *Result
	for ev := range events {
		if ev.Done {
			final = ev.Result
		}
	}
	if final == nil {
		t.Fatal("stream ended without a Done event")
	}
	if final.Provenance != ProvenanceFallback {
		t.Errorf("Provenance = %q, want fallback", final.Provenance)
	}
	if final.Response != char.Categories[0].Response {
		t.Errorf("Response = %q, want the journey response", final.Response)
	}

	// The truncated text must not have entered the cache.
	recent, err := store.ListRecent(ctx, char.ID, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	for _, rec := range recent {
		if strings.Contains(rec.Response, "I was born in") {
			t.Errorf("truncated answer was cached: %q", rec.Response)
		}
	}
}
