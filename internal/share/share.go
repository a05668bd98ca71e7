// Package share publishes single exchanges under stable links. A share is an
// immutable snapshot: later regeneration or cache eviction never changes what
// a recipient sees.
package share

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

// Service creates and resolves share links.
type Service struct {
	store convstore.Store
}

// NewService builds a Service over store.
func NewService(store convstore.Store) *Service {
	return &Service{store: store}
}

// Create snapshots one exchange and returns the stored share. The link path
// is /share/{characterID}/{share.ID}.
func (s *Service) Create(ctx context.Context, characterID, question, response, audioPath string) (*convstore.Share, error) {
	share := &convstore.Share{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		Question:    question,
		Response:    response,
		AudioPath:   audioPath,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateShare(ctx, share); err != nil {
		return nil, fmt.Errorf("share: create: %w", err)
	}
	return share, nil
}

// Resolve looks up a share by its link components. Returns
// convstore.ErrNotFound when either component doesn't match.
func (s *Service) Resolve(ctx context.Context, characterID, shareID string) (*convstore.Share, error) {
	return s.store.GetShare(ctx, characterID, shareID)
}
