package character

import (
	"strings"
	"testing"
	"time"
)

func TestWatcherReloadsOnEdit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "moses.yaml", minimalYAML)

	changed := make(chan *Registry, 1)
	w, err := NewWatcher(dir, func(_, reg *Registry) { changed <- reg }, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Current().Len() != 1 {
		t.Fatalf("initial registry has %d characters, want 1", w.Current().Len())
	}

	writeFile(t, dir, "abraham.yaml", strings.ReplaceAll(minimalYAML, "moses", "abraham"))

	select {
	case reg := <-changed:
		if reg.Len() != 2 {
			t.Errorf("reloaded registry has %d characters, want 2", reg.Len())
		}
		if w.Current() != reg {
			t.Error("Current does not return the reloaded registry")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never picked up the new file")
	}
}

func TestWatcherKeepsRegistryOnBrokenEdit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "moses.yaml", minimalYAML)

	w, err := NewWatcher(dir, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	before := w.Current()

	// A definition that fails validation must not evict the loaded set.
	writeFile(t, dir, "moses.yaml", "id: moses\n")
	time.Sleep(100 * time.Millisecond)

	if w.Current() != before {
		t.Error("broken edit replaced the registry")
	}
}

func TestWatcherInitialLoadFailure(t *testing.T) {
	if _, err := NewWatcher(t.TempDir(), nil); err == nil {
		t.Fatal("empty directory should fail the initial load")
	}
}
