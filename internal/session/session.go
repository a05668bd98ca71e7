// Package session tracks visits to a character's conversation page: when
// they started, when they ended, and how many messages were exchanged.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

// ErrInvalidID is returned when a client-supplied session id is not a UUID.
var ErrInvalidID = errors.New("session: id must be a UUID")

// Manager creates and closes session records.
type Manager struct {
	store convstore.Store
}

// NewManager builds a Manager over store.
func NewManager(store convstore.Store) *Manager {
	return &Manager{store: store}
}

// Start opens a session for characterID and returns it. The id is generated
// once by the client and stays stable for every conversation of the visit;
// when empty a new one is minted here. Starting a known session again is not
// an error. deviceInfo is free-form client metadata.
func (m *Manager) Start(ctx context.Context, characterID, id, deviceInfo string) (*convstore.Session, error) {
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	sess := &convstore.Session{
		ID:          id,
		CharacterID: characterID,
		DeviceInfo:  deviceInfo,
		StartedAt:   time.Now(),
	}
	if err := m.store.StartSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: start: %w", err)
	}
	return sess, nil
}

// End closes a session with its final message count. Returns
// convstore.ErrNotFound for unknown or already-closed sessions.
func (m *Manager) End(ctx context.Context, id string, messageCount int) error {
	return m.store.EndSession(ctx, id, time.Now(), messageCount)
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*convstore.Session, error) {
	return m.store.GetSession(ctx, id)
}
