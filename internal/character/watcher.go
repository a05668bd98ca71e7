package character

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Watcher monitors a character directory for changes and reloads the registry
// when a definition file is added, removed, or edited. It uses polling (not
// fsnotify) to keep dependencies minimal.
type Watcher struct {
	dir      string
	interval time.Duration
	onChange func(old, new *Registry)

	mu       sync.Mutex
	current  *Registry
	done     chan struct{}
	stopOnce sync.Once

	lastHash [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 30 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a character directory watcher. It loads the initial
// registry immediately and starts polling in a background goroutine.
// onChange may be nil.
func NewWatcher(dir string, onChange func(old, new *Registry), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		dir:      dir,
		interval: 30 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	reg, hash, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("character: watcher initial load: %w", err)
	}
	w.current = reg
	w.lastHash = hash

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid registry.
func (w *Watcher) Current() *Registry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the directory watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// poll runs in a background goroutine, checking the directory periodically.
func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check rehashes the directory and, if it has changed and still loads
// cleanly, swaps in the new registry and calls onChange. A directory that no
// longer loads keeps the previous registry in place.
func (w *Watcher) check() {
	reg, hash, err := w.loadAndHash()
	if err != nil {
		slog.Warn("character watcher: directory no longer loads; keeping previous characters",
			"dir", w.dir, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = reg
	w.lastHash = hash
	onChange := w.onChange
	w.mu.Unlock()

	slog.Info("character definitions reloaded", "dir", w.dir, "characters", reg.Len())
	if onChange != nil {
		onChange(old, reg)
	}
}

// loadAndHash loads the directory and computes a content hash over every
// definition file, in lexical order so the hash is stable.
func (w *Watcher) loadAndHash() (*Registry, [sha256.Size]byte, error) {
	var zero [sha256.Size]byte

	reg, err := LoadDir(w.dir)
	if err != nil {
		return nil, zero, err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, zero, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		io.WriteString(h, name)
		h.Write([]byte{0})
		data, err := os.ReadFile(filepath.Join(w.dir, name))
		if err != nil {
			return nil, zero, err
		}
		h.Write(data)
		h.Write([]byte{0})
	}

	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return reg, sum, nil
}
