// Package resilience keeps the dialogue server answering when an upstream AI
// provider degrades. A [Breaker] trips after repeated failures so a dead
// backend stops eating request latency, and a [Chain] tries a list of
// equivalent providers in priority order, skipping tripped ones.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the breaker is tripped and
// its cooldown has not elapsed.
var ErrOpen = errors.New("resilience: breaker open")

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults documented
// per field.
type BreakerConfig struct {
	// Label names the protected backend in log output.
	Label string

	// Threshold is how many consecutive failures trip the breaker. Default 5.
	Threshold int

	// Cooldown is how long a tripped breaker rejects calls before letting a
	// probe through. Default 30s.
	Cooldown time.Duration

	// ProbeBudget is how many consecutive probe calls must succeed after the
	// cooldown for the breaker to reset. Default 2.
	ProbeBudget int
}

// Breaker is a three-state circuit breaker: closed (calls pass), open (calls
// rejected with [ErrOpen]), probing (a limited number of calls pass to test
// recovery). Any probe failure re-trips it; enough probe successes reset it.
type Breaker struct {
	label       string
	threshold   int
	cooldown    time.Duration
	probeBudget int

	mu        sync.Mutex
	tripped   bool
	failures  int // consecutive failures while closed
	successes int // consecutive probe successes while tripped
	trippedAt time.Time
	inFlight  int // probes currently executing
}

// NewBreaker builds a Breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		label:       cfg.Label,
		threshold:   cfg.Threshold,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
	}
}

// Execute runs fn unless the breaker rejects the call. fn's error is returned
// unchanged so callers can inspect it; a rejected call returns [ErrOpen]
// without invoking fn.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed and updates probe accounting.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return nil
	}
	if time.Since(b.trippedAt) < b.cooldown {
		return ErrOpen
	}
	// One probe at a time keeps a herd of callers from hammering a backend
	// that may still be down.
	if b.inFlight > 0 {
		return ErrOpen
	}
	b.inFlight++
	return nil
}

// settle records the outcome of an admitted call.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped {
		b.inFlight--
		if err != nil {
			b.trippedAt = time.Now()
			b.successes = 0
			slog.Warn("backend probe failed, breaker stays open", "backend", b.label, "error", err)
			return
		}
		b.successes++
		if b.successes >= b.probeBudget {
			b.tripped = false
			b.failures = 0
			b.successes = 0
			slog.Info("backend recovered, breaker reset", "backend", b.label)
		}
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.tripped = true
		b.trippedAt = time.Now()
		b.successes = 0
		slog.Warn("backend tripped breaker", "backend", b.label, "consecutive_failures", b.failures)
	}
}

// Tripped reports whether the breaker is currently rejecting calls. A tripped
// breaker whose cooldown has elapsed reports false, since the next call will
// be admitted as a probe.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped && time.Since(b.trippedAt) < b.cooldown
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripped = false
	b.failures = 0
	b.successes = 0
	b.inFlight = 0
}
