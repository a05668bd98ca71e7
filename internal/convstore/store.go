// Package convstore defines the persistence layer for answered conversations:
// the response cache the resolver reads and writes, synthesized audio blobs,
// share links, and session records.
//
// Two implementations exist: postgres (the production backend) and memstore
// (in-memory, for tests and running without a database).
package convstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no record matches.
var ErrNotFound = errors.New("convstore: not found")

// Conversation is one answered question for one character. Records are
// append-only; the only mutation after insert is attaching the audio path
// once synthesis completes.
type Conversation struct {
	ID          string
	CharacterID string
	// SessionID groups the record with the visit that produced it, empty when
	// the client did not announce a session.
	SessionID string
	// Question is the user's text as typed.
	Question string
	// NormalizedQuestion is the lowercased, punctuation-stripped form used
	// for exact-match lookups.
	NormalizedQuestion string
	Response           string
	// AudioPath locates the synthesized narration under the audio object
	// store, empty when no audio exists yet.
	AudioPath string
	// Provenance records how the response was produced: "generated",
	// "fallback" or "cache" is never stored (a cache hit reuses the original
	// record).
	Provenance string
	CreatedAt  time.Time
}

// AudioObject is a stored audio blob addressed by path.
type AudioObject struct {
	Path      string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// Share is a snapshot of a single exchange published under a share link.
// Shares are immutable and never expire.
type Share struct {
	ID          string
	CharacterID string
	Question    string
	Response    string
	AudioPath   string
	CreatedAt   time.Time
}

// Session records one visit to a character's conversation page. The ID is
// normally generated by the client and stays stable for every conversation
// created during the visit.
type Session struct {
	ID          string
	CharacterID string
	// DeviceInfo is free-form client metadata (user agent, platform).
	DeviceInfo string
	StartedAt  time.Time
	// EndedAt is nil while the session is open.
	EndedAt      *time.Time
	MessageCount int
}

// Store is the persistence abstraction the resolver and HTTP layer depend on.
// Implementations must be safe for concurrent use.
type Store interface {
	// FindExact returns the newest conversation for characterID whose
	// normalized question equals normalizedQuestion, or ErrNotFound.
	FindExact(ctx context.Context, characterID, normalizedQuestion string) (*Conversation, error)

	// ListRecent returns up to limit conversations for characterID, newest
	// first. These are the fuzzy-match candidates.
	ListRecent(ctx context.Context, characterID string, limit int) ([]Conversation, error)

	// Persist inserts a new conversation record. The caller assigns the ID.
	Persist(ctx context.Context, c *Conversation) error

	// GetByID returns a conversation by ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Conversation, error)

	// AttachAudio sets the audio path on an existing conversation. This is
	// the second phase of the two-phase write: text first, audio when
	// synthesis finishes. Returns ErrNotFound when the record is gone.
	AttachAudio(ctx context.Context, id, audioPath string) error

	// PutAudio stores an audio blob under path, overwriting any previous
	// object at the same path.
	PutAudio(ctx context.Context, obj *AudioObject) error

	// GetAudio returns the audio blob at path, or ErrNotFound.
	GetAudio(ctx context.Context, path string) (*AudioObject, error)

	// CreateShare publishes a share snapshot.
	CreateShare(ctx context.Context, s *Share) error

	// GetShare resolves a share link, or ErrNotFound. Both IDs must match:
	// a share is addressed as characterID/shareID.
	GetShare(ctx context.Context, characterID, shareID string) (*Share, error)

	// StartSession inserts an open session record.
	StartSession(ctx context.Context, s *Session) error

	// EndSession closes a session, recording when it ended and how many
	// messages were exchanged. Ending an already-closed or unknown session
	// returns ErrNotFound.
	EndSession(ctx context.Context, id string, endedAt time.Time, messageCount int) error

	// GetSession returns a session by ID, or ErrNotFound.
	GetSession(ctx context.Context, id string) (*Session, error)
}

// SemanticIndex is the optional vector index over cached questions. When the
// backing store provides one, the resolver uses it to pre-rank fuzzy-match
// candidates instead of scanning the recent window linearly.
type SemanticIndex interface {
	// IndexQuestion stores the embedding for an existing conversation.
	IndexQuestion(ctx context.Context, conversationID, characterID string, embedding []float32) error

	// NearestQuestions returns up to limit conversation IDs for characterID,
	// ordered by ascending cosine distance to embedding.
	NearestQuestions(ctx context.Context, characterID string, embedding []float32, limit int) ([]string, error)
}
