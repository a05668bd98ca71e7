package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

// CreateShare implements convstore.Store.
func (s *Store) CreateShare(ctx context.Context, share *convstore.Share) error {
	const q = `
		INSERT INTO shares (id, character_id, question, response, audio_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createdAt := share.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, q,
		share.ID,
		share.CharacterID,
		share.Question,
		share.Response,
		share.AudioPath,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("conversation store: create share: %w", err)
	}
	return nil
}

// GetShare implements convstore.Store.
func (s *Store) GetShare(ctx context.Context, characterID, shareID string) (*convstore.Share, error) {
	const q = `
		SELECT id, character_id, question, response, audio_path, created_at
		FROM   shares
		WHERE  character_id = $1 AND id = $2`

	var share convstore.Share
	err := s.pool.QueryRow(ctx, q, characterID, shareID).Scan(
		&share.ID,
		&share.CharacterID,
		&share.Question,
		&share.Response,
		&share.AudioPath,
		&share.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, convstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation store: get share: %w", err)
	}
	return &share, nil
}
