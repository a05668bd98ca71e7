package playback

import (
	"errors"
	"testing"
)

// fakeArtifact counts Close calls.
type fakeArtifact struct {
	id     string
	closed int
}

func (f *fakeArtifact) ID() string   { return f.id }
func (f *fakeArtifact) Close() error { f.closed++; return nil }

func TestPlayPreemptsAndCloses(t *testing.T) {
	c := New()
	first := &fakeArtifact{id: "a"}
	second := &fakeArtifact{id: "b"}

	t1 := c.Play(first)
	if state, id := c.State(); state != Playing || id != "a" {
		t.Fatalf("state = %v/%q, want playing/a", state, id)
	}

	t2 := c.Play(second)
	if first.closed != 1 {
		t.Errorf("preempted artifact closed %d times, want 1", first.closed)
	}
	if state, id := c.State(); state != Playing || id != "b" {
		t.Fatalf("state = %v/%q, want playing/b", state, id)
	}

	// The old playback's completion arrives late; it must not disturb the
	// new one.
	c.Complete(t1)
	if state, _ := c.State(); state != Playing {
		t.Error("stale completion changed state")
	}

	c.Complete(t2)
	if state, id := c.State(); state != Idle || id != "b" {
		t.Errorf("state = %v/%q, want idle with artifact kept for replay", state, id)
	}
}

func TestPauseResume(t *testing.T) {
	c := New()
	c.Play(&fakeArtifact{id: "a"})

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if state, _ := c.State(); state != Paused {
		t.Fatalf("state = %v, want paused", state)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if state, _ := c.State(); state != Playing {
		t.Fatalf("state = %v, want playing", state)
	}

	// Pause only applies while playing.
	c.Stop()
	if err := c.Pause(); !errors.Is(err, ErrNoArtifact) {
		t.Errorf("Pause while idle: err = %v, want ErrNoArtifact", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrNoArtifact) {
		t.Errorf("Resume while idle: err = %v, want ErrNoArtifact", err)
	}
}

func TestReplayAfterCompletion(t *testing.T) {
	c := New()
	a := &fakeArtifact{id: "a"}

	t1 := c.Play(a)
	c.Complete(t1)

	t2, err := c.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if t2 == t1 {
		t.Error("replay reused the finished ticket")
	}
	if state, id := c.State(); state != Playing || id != "a" {
		t.Errorf("state = %v/%q, want playing/a", state, id)
	}
	if a.closed != 0 {
		t.Errorf("artifact closed %d times during replay, want 0", a.closed)
	}

	// The superseded ticket's completion is discarded.
	c.Complete(t1)
	if state, _ := c.State(); state != Playing {
		t.Error("stale completion interrupted the replay")
	}
}

func TestReplayWithoutArtifact(t *testing.T) {
	c := New()
	if _, err := c.Replay(); !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("err = %v, want ErrNoArtifact", err)
	}
}

func TestAutoplayOncePerArtifact(t *testing.T) {
	c := New()
	a := &fakeArtifact{id: "a"}

	if _, err := c.Autoplay(a); err != nil {
		t.Fatalf("Autoplay: %v", err)
	}

	// A second automatic attempt for the same artifact is refused; the
	// refused copy is released.
	dup := &fakeArtifact{id: "a"}
	if _, err := c.Autoplay(dup); err == nil {
		t.Fatal("second autoplay for the same artifact should fail")
	}
	if dup.closed != 1 {
		t.Errorf("refused artifact closed %d times, want 1", dup.closed)
	}

	// Explicit play is always allowed.
	c.Play(&fakeArtifact{id: "a"})
	if state, _ := c.State(); state != Playing {
		t.Error("explicit play refused")
	}
}

func TestAutoplayBlockedUntilInteraction(t *testing.T) {
	c := New()
	a := &fakeArtifact{id: "a"}

	ticket, err := c.Autoplay(a)
	if err != nil {
		t.Fatalf("Autoplay: %v", err)
	}

	// The platform refuses; the pending playback is discarded and further
	// autoplays are blocked.
	c.AutoplayRejected(ticket)
	if state, _ := c.State(); state != Idle {
		t.Errorf("state = %v after rejection, want idle", state)
	}
	if a.closed != 1 {
		t.Errorf("rejected artifact closed %d times, want 1", a.closed)
	}

	b := &fakeArtifact{id: "b"}
	if _, err := c.Autoplay(b); !errors.Is(err, ErrAutoplayBlocked) {
		t.Fatalf("err = %v, want ErrAutoplayBlocked", err)
	}
	if b.closed != 1 {
		t.Errorf("blocked artifact closed %d times, want 1", b.closed)
	}

	// A user interaction lifts the block.
	c.MarkInteraction()
	if _, err := c.Autoplay(&fakeArtifact{id: "c"}); err != nil {
		t.Fatalf("Autoplay after interaction: %v", err)
	}
}

func TestCloseReleasesArtifact(t *testing.T) {
	c := New()
	a := &fakeArtifact{id: "a"}
	c.Play(a)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.closed != 1 {
		t.Errorf("artifact closed %d times, want 1", a.closed)
	}
	if state, id := c.State(); state != Idle || id != "" {
		t.Errorf("state = %v/%q after close", state, id)
	}
}
