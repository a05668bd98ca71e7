package resolver

import (
	"context"
	"log/slog"

	"github.com/Blubaugh09/SacredDialogue/internal/character"
	"github.com/Blubaugh09/SacredDialogue/internal/similarity"
)

// StreamEvent is one event on a ResolveStream channel. Delta events carry
// incremental response text; the final event has Done set and carries the
// complete Result.
type StreamEvent struct {
	Delta  string  `json:"delta,omitempty"`
	Done   bool    `json:"done,omitempty"`
	Result *Result `json:"result,omitempty"`
}

// ResolveStream is the streaming variant of Resolve, used by the WebSocket
// chat. Cache and static responses arrive as a single delta; generated
// responses arrive incrementally as the LLM produces them. The channel always
// ends with a Done event and is then closed; a mid-stream LLM failure falls
// back to the static tables, so the stream completes with an answer either
// way.
//
// Streamed generations bypass the duplicate-suppression group: two clients
// streaming the same question concurrently may each run a generation.
func (r *Resolver) ResolveStream(ctx context.Context, char *character.Character, question, sessionID string, history []Turn) (<-chan StreamEvent, error) {
	normalized := similarity.Normalize(question)
	if normalized == "" {
		return nil, ErrEmptyQuestion
	}

	if hit := r.lookupCache(ctx, char, question, normalized); hit != nil {
		return singleEventStream(hit), nil
	}

	if r.llm == nil {
		return singleEventStream(r.staticResult(ctx, char, question, normalized, sessionID)), nil
	}

	chunks, err := r.llm.StreamCompletion(ctx, r.completionRequest(char, question, history))
	if err != nil {
		slog.Warn("opening completion stream failed, using static response",
			"character", char.ID, "error", err)
		return singleEventStream(r.staticResult(ctx, char, question, normalized, sessionID)), nil
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)

		var assembled []byte
		var failed bool
		for chunk := range chunks {
			if chunk.FinishReason == "error" {
				failed = true
			}
			if chunk.Text == "" {
				continue
			}
			assembled = append(assembled, chunk.Text...)
			select {
			case out <- StreamEvent{Delta: chunk.Text}:
			case <-ctx.Done():
				return
			}
		}

		if failed || len(assembled) == 0 {
			// The stream broke mid-generation or dried up without content.
			// A truncated answer must never enter the cache, so the static
			// result replaces whatever was already streamed.
			if failed {
				slog.Warn("completion stream failed mid-generation, using static response",
					"character", char.ID)
			}
			result := r.staticResult(ctx, char, question, normalized, sessionID)
			select {
			case out <- StreamEvent{Delta: result.Response}:
			case <-ctx.Done():
				return
			}
			select {
			case out <- StreamEvent{Done: true, Result: result}:
			case <-ctx.Done():
			}
			return
		}

		result := &Result{
			Response:    string(assembled),
			Provenance:  ProvenanceGenerated,
			Suggestions: char.SuggestionsFor(question),
		}
		r.persist(ctx, char, question, normalized, sessionID, result)
		select {
		case out <- StreamEvent{Done: true, Result: result}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// staticResult answers from the keyword tables and persists matched
// responses, mirroring the non-streaming fallback stage.
func (r *Resolver) staticResult(ctx context.Context, char *character.Character, question, normalized, sessionID string) *Result {
	response, matched := char.StaticResponse(question)
	result := &Result{
		Response:    response,
		Provenance:  ProvenanceFallback,
		Suggestions: char.SuggestionsFor(question),
	}
	if matched {
		r.persist(ctx, char, question, normalized, sessionID, result)
	}
	return result
}

// singleEventStream wraps an already-complete result as a closed stream.
func singleEventStream(result *Result) <-chan StreamEvent {
	out := make(chan StreamEvent, 2)
	out <- StreamEvent{Delta: result.Response}
	out <- StreamEvent{Done: true, Result: result}
	close(out)
	return out
}
