package resilience

import (
	"context"

	"github.com/Blubaugh09/SacredDialogue/pkg/provider/stt"
)

var _ stt.Provider = (*STT)(nil)

// STT is an stt.Provider that fails over across a chain of real providers.
type STT struct {
	chain *Chain[stt.Provider]
}

// NewSTT builds an empty STT failover chain.
func NewSTT(cfg BreakerConfig) *STT {
	return &STT{chain: NewChain[stt.Provider](cfg)}
}

// Add registers a backend. The first added is the primary.
func (f *STT) Add(name string, p stt.Provider) {
	f.chain.Add(name, p)
}

// Backends returns the registered backend names in priority order.
func (f *STT) Backends() []string { return f.chain.Names() }

// Transcribe implements stt.Provider.
func (f *STT) Transcribe(ctx context.Context, rec stt.Recording) (string, error) {
	return Do(f.chain, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, rec)
	})
}
