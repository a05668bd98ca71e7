package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every entry in a [Chain] failed or was
// rejected by its breaker.
var ErrExhausted = errors.New("resilience: all backends failed")

type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds equivalent backends in priority order, each behind its own
// [Breaker]. Calls go to the first entry whose breaker admits them and that
// returns success. Entries are registered at startup; Do may be called
// concurrently afterwards.
type Chain[T any] struct {
	entries   []chainEntry[T]
	breakerFn func(name string) *Breaker
}

// NewChain builds an empty chain. cfg seeds the breaker created for every
// entry; cfg.Label is overwritten with the entry name.
func NewChain[T any](cfg BreakerConfig) *Chain[T] {
	return &Chain[T]{
		breakerFn: func(name string) *Breaker {
			c := cfg
			c.Label = name
			return NewBreaker(c)
		},
	}
}

// Add appends a backend. The first added is the primary.
func (c *Chain[T]) Add(name string, value T) {
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: c.breakerFn(name),
	})
}

// Len returns the number of registered backends.
func (c *Chain[T]) Len() int { return len(c.entries) }

// Names returns the backend names in priority order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Do runs fn against each backend in priority order until one succeeds.
// Backends with open breakers are skipped. When everything fails the last
// error is wrapped in [ErrExhausted].
func (c *Chain[T]) Do(fn func(T) error) error {
	_, err := Do(c, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// Do runs fn against each backend of chain in priority order until one
// succeeds and returns its result. A package-level function because Go
// methods cannot introduce the result type parameter.
func Do[T, R any](chain *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range chain.entries {
		entry := &chain.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping backend, breaker open", "backend", entry.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", entry.name, "error", err)
		}
	}
	if lastErr == nil {
		return zero, ErrExhausted
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
