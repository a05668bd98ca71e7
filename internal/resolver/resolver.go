// Package resolver implements the response pipeline for character questions.
//
// A question is answered by the first stage that can serve it:
//
//  1. exact cache: a previously answered question with the same normalized
//     text, newest record wins
//  2. fuzzy cache: a cached question scoring at or above the similarity
//     threshold, most recent match wins
//  3. generation: the configured LLM, prompted with the character persona and
//     the conversation history
//  4. static: the character's keyword response tables
//
// Cache hits reuse the stored narration audio; new responses are narrated
// best-effort and persisted in two phases, text first, audio attached once
// synthesis completes. Concurrent identical questions for the same character
// collapse into one pipeline execution.
//
// Store failures are cache misses: an unreachable database degrades the
// pipeline to generation or the static tables, it never fails the exchange.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/similarity"
	"github.com/Blubaugh09/SacredDialogue/internal/speech"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/embeddings"
	"github.com/Blubaugh09/SacredDialogue/pkg/provider/llm"
)

const (
	// DefaultRecentWindow is how many recent conversations are scanned for a
	// fuzzy match when no semantic index is available.
	DefaultRecentWindow = 100

	// DefaultMaxTokens caps LLM completions.
	DefaultMaxTokens = 1000

	// DefaultTemperature for LLM completions.
	DefaultTemperature = 0.7
)

// ErrEmptyQuestion is returned when the question is empty after
// normalization.
var ErrEmptyQuestion = errors.New("resolver: question is empty")

// Provenance says which pipeline stage produced a response.
type Provenance string

const (
	// ProvenanceCache marks responses served from a previous conversation,
	// exact or fuzzy.
	ProvenanceCache Provenance = "cache"
	// ProvenanceGenerated marks freshly generated LLM responses.
	ProvenanceGenerated Provenance = "generated"
	// ProvenanceFallback marks responses from the static keyword tables.
	ProvenanceFallback Provenance = "fallback"
)

// Turn is one prior exchange message, supplied by the client as conversation
// context for generation.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	Text string `json:"text"`
}

// Result is a resolved answer.
type Result struct {
	// ConversationID identifies the persisted record, empty when the
	// response was not persisted (generic static fallback).
	ConversationID string `json:"conversation_id,omitempty"`
	Response       string `json:"response"`
	// AudioPath locates the narration in the audio object store, empty when
	// no narration exists.
	AudioPath   string     `json:"audio_path,omitempty"`
	Provenance  Provenance `json:"provenance"`
	Suggestions []string   `json:"suggestions,omitempty"`
}

// Resolver runs the pipeline. All dependencies except the store are optional:
// without an LLM the pipeline skips straight from the cache to the static
// tables, without a synthesizer responses are text-only, and the semantic
// index only participates when both it and an embedder are configured.
type Resolver struct {
	store    convstore.Store
	llm      llm.Provider
	synth    *speech.Synthesizer
	semantic convstore.SemanticIndex
	embedder embeddings.Provider

	scorer       similarity.Scorer
	threshold    float64
	recentWindow int
	maxTokens    int
	temperature  float64

	inflight singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLLM enables the generation stage.
func WithLLM(p llm.Provider) Option {
	return func(r *Resolver) { r.llm = p }
}

// WithSynthesizer enables narration of responses.
func WithSynthesizer(s *speech.Synthesizer) Option {
	return func(r *Resolver) { r.synth = s }
}

// WithSemanticIndex pre-ranks fuzzy candidates by embedding distance instead
// of scanning the recent window linearly. Both arguments are required.
func WithSemanticIndex(idx convstore.SemanticIndex, embedder embeddings.Provider) Option {
	return func(r *Resolver) {
		r.semantic = idx
		r.embedder = embedder
	}
}

// WithScorer overrides the default Jaccard similarity scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(r *Resolver) { r.scorer = s }
}

// WithThreshold overrides similarity.DefaultThreshold.
func WithThreshold(t float64) Option {
	return func(r *Resolver) { r.threshold = t }
}

// WithRecentWindow overrides DefaultRecentWindow.
func WithRecentWindow(n int) Option {
	return func(r *Resolver) { r.recentWindow = n }
}

// WithCompletionLimits overrides DefaultMaxTokens and DefaultTemperature.
func WithCompletionLimits(maxTokens int, temperature float64) Option {
	return func(r *Resolver) {
		r.maxTokens = maxTokens
		r.temperature = temperature
	}
}

// New builds a Resolver over store.
func New(store convstore.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:        store,
		scorer:       similarity.JaccardScorer{},
		threshold:    similarity.DefaultThreshold,
		recentWindow: DefaultRecentWindow,
		maxTokens:    DefaultMaxTokens,
		temperature:  DefaultTemperature,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve answers question as char. sessionID groups the exchange with the
// client's visit and is recorded on persisted conversations; history is the
// client's view of the conversation so far and only influences generation.
func (r *Resolver) Resolve(ctx context.Context, char *character.Character, question, sessionID string, history []Turn) (*Result, error) {
	normalized := similarity.Normalize(question)
	if normalized == "" {
		return nil, ErrEmptyQuestion
	}

	key := char.ID + "|" + normalized
	v, err, _ := r.inflight.Do(key, func() (any, error) {
		return r.resolve(ctx, char, question, normalized, sessionID, history)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (r *Resolver) resolve(ctx context.Context, char *character.Character, question, normalized, sessionID string, history []Turn) (*Result, error) {
	if hit := r.lookupCache(ctx, char, question, normalized); hit != nil {
		return hit, nil
	}

	response, provenance, persist := r.produce(ctx, char, question, history)

	result := &Result{
		Response:    response,
		Provenance:  provenance,
		Suggestions: char.SuggestionsFor(question),
	}
	if persist {
		r.persist(ctx, char, question, normalized, sessionID, result)
	}
	return result, nil
}

// lookupCache runs the exact and fuzzy stages. A nil return means miss; store
// failures are logged and count as misses so the pipeline keeps going.
func (r *Resolver) lookupCache(ctx context.Context, char *character.Character, question, normalized string) *Result {
	rec, err := r.store.FindExact(ctx, char.ID, normalized)
	switch {
	case err == nil:
		return r.fromRecord(ctx, char, question, rec)
	case !errors.Is(err, convstore.ErrNotFound):
		slog.Warn("exact lookup failed, treating as cache miss",
			"character", char.ID, "error", err)
	}

	if rec := r.fuzzyMatch(ctx, char, question); rec != nil {
		slog.Debug("fuzzy cache hit",
			"character", char.ID,
			"question", question,
			"matched", rec.Question)
		return r.fromRecord(ctx, char, question, rec)
	}
	return nil
}

// fuzzyMatch scans cached conversations for one similar enough to question.
// Candidates come from the semantic index when available, otherwise from the
// recent window, and in both cases the first candidate at or above the
// threshold wins.
func (r *Resolver) fuzzyMatch(ctx context.Context, char *character.Character, question string) *convstore.Conversation {
	candidates := r.fuzzyCandidates(ctx, char, question)
	for i := range candidates {
		score := r.scorer.Score(question, candidates[i].Question)
		if score >= r.threshold {
			return &candidates[i]
		}
	}
	return nil
}

func (r *Resolver) fuzzyCandidates(ctx context.Context, char *character.Character, question string) []convstore.Conversation {
	if r.semantic != nil && r.embedder != nil {
		candidates, err := r.semanticCandidates(ctx, char, question)
		if err == nil {
			return candidates
		}
		// The linear scan still works when the index misbehaves.
		slog.Warn("semantic candidate lookup failed, falling back to recent window",
			"character", char.ID, "error", err)
	}

	candidates, err := r.store.ListRecent(ctx, char.ID, r.recentWindow)
	if err != nil {
		slog.Warn("listing fuzzy candidates failed, treating as cache miss",
			"character", char.ID, "error", err)
		return nil
	}
	return candidates
}

func (r *Resolver) semanticCandidates(ctx context.Context, char *character.Character, question string) ([]convstore.Conversation, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	ids, err := r.semantic.NearestQuestions(ctx, char.ID, vec, r.recentWindow)
	if err != nil {
		return nil, fmt.Errorf("nearest questions: %w", err)
	}

	candidates := make([]convstore.Conversation, 0, len(ids))
	for _, id := range ids {
		rec, err := r.store.GetByID(ctx, id)
		if errors.Is(err, convstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load candidate %s: %w", id, err)
		}
		candidates = append(candidates, *rec)
	}
	return candidates, nil
}

// fromRecord turns a cached conversation into a Result, regenerating the
// narration when the stored audio object has gone missing.
func (r *Resolver) fromRecord(ctx context.Context, char *character.Character, question string, rec *convstore.Conversation) *Result {
	audioPath := rec.AudioPath
	if audioPath != "" {
		if _, err := r.store.GetAudio(ctx, audioPath); err != nil {
			slog.Warn("cached audio missing, regenerating",
				"conversation", rec.ID, "path", audioPath, "error", err)
			audioPath = r.narrate(ctx, char, rec.ID, rec.Response)
		}
	} else if r.synth != nil {
		// Text-only record from a run without TTS; narrate it now.
		audioPath = r.narrate(ctx, char, rec.ID, rec.Response)
	}

	return &Result{
		ConversationID: rec.ID,
		Response:       rec.Response,
		AudioPath:      audioPath,
		Provenance:     ProvenanceCache,
		Suggestions:    char.SuggestionsFor(question),
	}
}

// produce runs the generation and static stages. persist reports whether the
// response is worth caching: everything except the generic
// don't-understand fallback.
func (r *Resolver) produce(ctx context.Context, char *character.Character, question string, history []Turn) (response string, provenance Provenance, persist bool) {
	if r.llm != nil {
		resp, err := r.llm.Complete(ctx, r.completionRequest(char, question, history))
		if err == nil && resp.Content != "" {
			return resp.Content, ProvenanceGenerated, true
		}
		slog.Warn("generation failed, using static response",
			"character", char.ID, "error", err)
	}

	response, matched := char.StaticResponse(question)
	return response, ProvenanceFallback, matched
}

// completionRequest assembles the LLM request: persona system prompt, prior
// turns, then the question.
func (r *Resolver) completionRequest(char *character.Character, question string, history []Turn) llm.CompletionRequest {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		role := llm.RoleAssistant
		if turn.Role == "user" {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	return llm.CompletionRequest{
		SystemPrompt: char.SystemPrompt(),
		Messages:     messages,
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
	}
}

// persist narrates and stores a new response, filling in the result's
// ConversationID and AudioPath. Storage failures are logged, never surfaced:
// the user already has their answer.
func (r *Resolver) persist(ctx context.Context, char *character.Character, question, normalized, sessionID string, result *Result) {
	// Another replica may have answered the same question while we were
	// generating; reuse its record instead of inserting a near-duplicate.
	if existing, err := r.store.FindExact(ctx, char.ID, normalized); err == nil {
		result.ConversationID = existing.ID
		if existing.AudioPath != "" {
			result.AudioPath = existing.AudioPath
		}
		return
	}

	rec := &convstore.Conversation{
		ID:                 uuid.NewString(),
		CharacterID:        char.ID,
		SessionID:          sessionID,
		Question:           question,
		NormalizedQuestion: normalized,
		Response:           result.Response,
		Provenance:         string(result.Provenance),
		CreatedAt:          time.Now(),
	}
	if err := r.store.Persist(ctx, rec); err != nil {
		slog.Warn("persisting conversation failed",
			"character", char.ID, "error", err)
		return
	}
	result.ConversationID = rec.ID
	result.AudioPath = r.narrate(ctx, char, rec.ID, result.Response)
	r.indexQuestion(ctx, char, rec.ID, question)
}

// narrate synthesizes and stores narration for a conversation, then attaches
// the audio path to the record. Every step is best-effort; a failure leaves
// the record text-only and returns "".
func (r *Resolver) narrate(ctx context.Context, char *character.Character, conversationID, response string) string {
	if r.synth == nil {
		return ""
	}
	data := r.synth.TrySynthesize(ctx, response, char.Voice)
	if data == nil {
		return ""
	}

	path := "responses/" + conversationID + ".mp3"
	err := r.store.PutAudio(ctx, &convstore.AudioObject{
		Path:     path,
		MIMEType: speech.MIMEType,
		Data:     data,
	})
	if err != nil {
		slog.Warn("storing narration failed", "conversation", conversationID, "error", err)
		return ""
	}
	if err := r.store.AttachAudio(ctx, conversationID, path); err != nil {
		slog.Warn("attaching narration failed", "conversation", conversationID, "error", err)
	}
	return path
}

// indexQuestion adds the question embedding to the semantic index,
// best-effort.
func (r *Resolver) indexQuestion(ctx context.Context, char *character.Character, conversationID, question string) {
	if r.semantic == nil || r.embedder == nil {
		return
	}
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		slog.Warn("embedding question failed", "conversation", conversationID, "error", err)
		return
	}
	if err := r.semantic.IndexQuestion(ctx, conversationID, char.ID, vec); err != nil {
		slog.Warn("indexing question failed", "conversation", conversationID, "error", err)
	}
}

// PrepareGreeting narrates a character's greeting and stores it under a
// stable path, reusing the stored object on subsequent calls. Returns the
// audio path, or "" when synthesis is unavailable or fails.
func (r *Resolver) PrepareGreeting(ctx context.Context, char *character.Character) string {
	if r.synth == nil {
		return ""
	}
	path := "greetings/" + char.ID + ".mp3"
	if _, err := r.store.GetAudio(ctx, path); err == nil {
		return path
	}

	data := r.synth.TrySynthesize(ctx, char.Greeting, char.Voice)
	if data == nil {
		return ""
	}
	err := r.store.PutAudio(ctx, &convstore.AudioObject{
		Path:     path,
		MIMEType: speech.MIMEType,
		Data:     data,
	})
	if err != nil {
		slog.Warn("storing greeting narration failed", "character", char.ID, "error", err)
		return ""
	}
	return path
}
