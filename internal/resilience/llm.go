package resilience

import (
	"context"

	"github.com/Blubaugh09/SacredDialogue/pkg/provider/llm"
)

var _ llm.Provider = (*LLM)(nil)

// LLM is an llm.Provider that fails over across a chain of real providers.
// Completion requests move to the next backend when one errors; streaming
// requests fail over only while opening the stream, mid-stream errors are
// surfaced to the caller untouched.
type LLM struct {
	chain *Chain[llm.Provider]
}

// NewLLM builds an empty LLM failover chain.
func NewLLM(cfg BreakerConfig) *LLM {
	return &LLM{chain: NewChain[llm.Provider](cfg)}
}

// Add registers a backend. The first added is the primary.
func (f *LLM) Add(name string, p llm.Provider) {
	f.chain.Add(name, p)
}

// Backends returns the registered backend names in priority order.
func (f *LLM) Backends() []string { return f.chain.Names() }

// Complete implements llm.Provider.
func (f *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion implements llm.Provider.
func (f *LLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return Do(f.chain, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}
