// Package playback keeps at most one narration artifact active per
// conversation view. The coordinator is the authority on what is playing:
// starting a new artifact always preempts the old one, completions for
// superseded artifacts are discarded, and preempted artifacts have their
// backing resources released deterministically.
package playback

import (
	"errors"
	"io"
	"sync"
)

// ErrAutoplayBlocked is returned by Autoplay after the platform has rejected
// autoplay and no user interaction has happened since.
var ErrAutoplayBlocked = errors.New("playback: autoplay blocked until user interaction")

// ErrNoArtifact is returned by Pause, Resume and Replay when no artifact is
// loaded.
var ErrNoArtifact = errors.New("playback: no artifact")

// State is the coordinator's mode.
type State int

const (
	// Idle means nothing is loaded or the loaded artifact finished.
	Idle State = iota
	// Playing means the current artifact is audible.
	Playing
	// Paused means the current artifact is loaded but halted.
	Paused
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Artifact is one playable narration. Close releases whatever transient
// resource backs it (decode buffer, temp file) and must be safe to call once.
type Artifact interface {
	ID() string
	io.Closer
}

// Ticket identifies one playback start. Completion reports carry the ticket
// so reports for preempted or replayed playbacks can be told apart from the
// current one and discarded.
type Ticket uint64

// Coordinator is the per-conversation-view state machine. Safe for
// concurrent use.
type Coordinator struct {
	mu              sync.Mutex
	state           State
	current         Artifact
	ticket          Ticket
	autoplayBlocked bool
	autoplayed      map[string]bool // artifact IDs already given their one autoplay attempt
}

// New returns an idle coordinator.
func New() *Coordinator {
	return &Coordinator{autoplayed: make(map[string]bool)}
}

// Play loads a and enters Playing, preempting and closing any current
// artifact. The returned ticket must accompany the matching Complete call.
func (c *Coordinator) Play(a Artifact) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(a)
}

// startLocked swaps in a new artifact. Must be called with c.mu held.
func (c *Coordinator) startLocked(a Artifact) Ticket {
	if c.current != nil && c.current != a {
		// Release the preempted artifact even if Close errors; there is
		// nothing useful to do with the error here.
		_ = c.current.Close()
	}
	c.current = a
	c.state = Playing
	c.ticket++
	return c.ticket
}

// Autoplay starts a like Play, but only once per artifact and only while
// autoplay is permitted. A second Autoplay for the same artifact ID, or any
// Autoplay while blocked, returns without starting; explicit Play is always
// allowed. When autoplay is not attempted the artifact is closed, since the
// coordinator will never own it.
func (c *Coordinator) Autoplay(a Artifact) (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoplayBlocked {
		_ = a.Close()
		return 0, ErrAutoplayBlocked
	}
	if c.autoplayed[a.ID()] {
		_ = a.Close()
		return 0, ErrAutoplayBlocked
	}
	c.autoplayed[a.ID()] = true
	return c.startLocked(a), nil
}

// AutoplayRejected records that the platform refused to start audio. Further
// Autoplay calls fail until MarkInteraction. The rejected playback is
// discarded.
func (c *Coordinator) AutoplayRejected(t Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoplayBlocked = true
	if t != c.ticket {
		return
	}
	c.releaseLocked()
}

// MarkInteraction records an explicit user interaction, which platforms
// treat as permission for audio from then on.
func (c *Coordinator) MarkInteraction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoplayBlocked = false
}

// Pause halts the current artifact.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Playing {
		return ErrNoArtifact
	}
	c.state = Paused
	return nil
}

// Resume continues a paused artifact.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Paused {
		return ErrNoArtifact
	}
	c.state = Playing
	return nil
}

// Replay restarts the current artifact from the beginning, regardless of
// whether it previously finished. The old ticket is superseded.
func (c *Coordinator) Replay() (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return 0, ErrNoArtifact
	}
	c.state = Playing
	c.ticket++
	return c.ticket, nil
}

// Complete reports that the playback identified by t finished. Reports for
// superseded tickets are discarded so a preempted artifact's late completion
// cannot knock out its successor. The finished artifact stays loaded for
// Replay; only its state moves to Idle.
func (c *Coordinator) Complete(t Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t != c.ticket {
		return
	}
	c.state = Idle
}

// Stop unloads and closes the current artifact.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

// Close releases everything; for use on view teardown.
func (c *Coordinator) Close() error {
	c.Stop()
	return nil
}

// releaseLocked closes and drops the current artifact. Must be called with
// c.mu held.
func (c *Coordinator) releaseLocked() {
	if c.current != nil {
		_ = c.current.Close()
		c.current = nil
	}
	c.state = Idle
}

// State returns the current state and loaded artifact ID ("" when idle with
// nothing loaded).
func (c *Coordinator) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := ""
	if c.current != nil {
		id = c.current.ID()
	}
	return c.state, id
}
