// Package memstore is an in-memory convstore.Store. It backs the server when
// no database is configured (everything is forgotten on restart) and keeps
// tests free of external dependencies.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

var _ convstore.Store = (*Store)(nil)

// Store holds all records behind a single mutex. Fine for a dev server; the
// postgres implementation is the production path.
type Store struct {
	mu            sync.Mutex
	conversations []*convstore.Conversation
	audio         map[string]*convstore.AudioObject
	shares        map[string]*convstore.Share // keyed characterID + "/" + shareID
	sessions      map[string]*convstore.Session
}

// New returns an empty store.
func New() *Store {
	return &Store{
		audio:    make(map[string]*convstore.AudioObject),
		shares:   make(map[string]*convstore.Share),
		sessions: make(map[string]*convstore.Session),
	}
}

// FindExact implements convstore.Store.
func (s *Store) FindExact(_ context.Context, characterID, normalizedQuestion string) (*convstore.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *convstore.Conversation
	for _, c := range s.conversations {
		if c.CharacterID != characterID || c.NormalizedQuestion != normalizedQuestion {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, convstore.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

// ListRecent implements convstore.Store.
func (s *Store) ListRecent(_ context.Context, characterID string, limit int) ([]convstore.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*convstore.Conversation
	for _, c := range s.conversations {
		if c.CharacterID == characterID {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]convstore.Conversation, len(matched))
	for i, c := range matched {
		out[i] = *c
	}
	return out, nil
}

// Persist implements convstore.Store.
func (s *Store) Persist(_ context.Context, c *convstore.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.conversations = append(s.conversations, &cp)
	return nil
}

// GetByID implements convstore.Store.
func (s *Store) GetByID(_ context.Context, id string) (*convstore.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, convstore.ErrNotFound
}

// AttachAudio implements convstore.Store.
func (s *Store) AttachAudio(_ context.Context, id, audioPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.ID == id {
			c.AudioPath = audioPath
			return nil
		}
	}
	return convstore.ErrNotFound
}

// PutAudio implements convstore.Store.
func (s *Store) PutAudio(_ context.Context, obj *convstore.AudioObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *obj
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.audio[cp.Path] = &cp
	return nil
}

// GetAudio implements convstore.Store.
func (s *Store) GetAudio(_ context.Context, path string) (*convstore.AudioObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.audio[path]
	if !ok {
		return nil, convstore.ErrNotFound
	}
	cp := *obj
	return &cp, nil
}

// CreateShare implements convstore.Store.
func (s *Store) CreateShare(_ context.Context, share *convstore.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *share
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.shares[share.CharacterID+"/"+share.ID] = &cp
	return nil
}

// GetShare implements convstore.Store.
func (s *Store) GetShare(_ context.Context, characterID, shareID string) (*convstore.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	share, ok := s.shares[characterID+"/"+shareID]
	if !ok {
		return nil, convstore.ErrNotFound
	}
	cp := *share
	return &cp, nil
}

// StartSession implements convstore.Store. A retried start for a known
// session is a no-op, matching the postgres implementation.
func (s *Store) StartSession(_ context.Context, sess *convstore.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return nil
	}
	cp := *sess
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now()
	}
	s.sessions[sess.ID] = &cp
	return nil
}

// EndSession implements convstore.Store.
func (s *Store) EndSession(_ context.Context, id string, endedAt time.Time, messageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.EndedAt != nil {
		return convstore.ErrNotFound
	}
	t := endedAt
	sess.EndedAt = &t
	sess.MessageCount = messageCount
	return nil
}

// GetSession implements convstore.Store.
func (s *Store) GetSession(_ context.Context, id string) (*convstore.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, convstore.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}
