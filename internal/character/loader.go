package character

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds the loaded character set. It is built once at startup and
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	ordered []*Character
	byID    map[string]*Character
}

// NewRegistry builds a registry from already-validated characters. Order is
// preserved. Duplicate IDs are an error.
func NewRegistry(chars []*Character) (*Registry, error) {
	r := &Registry{
		ordered: make([]*Character, 0, len(chars)),
		byID:    make(map[string]*Character, len(chars)),
	}
	for _, c := range chars {
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("character: duplicate id %q", c.ID)
		}
		r.ordered = append(r.ordered, c)
		r.byID[c.ID] = c
	}
	return r, nil
}

// All returns the characters in load order. The slice must not be mutated.
func (r *Registry) All() []*Character {
	return r.ordered
}

// Get looks a character up by ID.
func (r *Registry) Get(id string) (*Character, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Len returns the number of loaded characters.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// LoadFile parses and validates a single character definition.
func LoadFile(path string) (*Character, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("character: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var c Character
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("character: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("character: invalid definition %s: %w", path, err)
	}
	return &c, nil
}

// LoadDir loads every .yaml/.yml file in dir, in lexical filename order, and
// returns them as a Registry. A directory with no definition files is an
// error: a dialogue server with nobody to talk to is a misconfiguration.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("character: read dir %s: %w", dir, err)
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

	if len(names) == 0 {
		return nil, fmt.Errorf("character: no definition files in %s", dir)
	}

	chars := make([]*Character, 0, len(names))
	for _, name := range names {
		c, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		chars = append(chars, c)
	}
	return NewRegistry(chars)
}
