package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

const conversationColumns = `id, character_id, session_id, question, normalized_question, response, audio_path, provenance, created_at`

// FindExact implements convstore.Store. Multiple records can share a
// normalized question (duplicate generations are tolerated); the newest wins.
func (s *Store) FindExact(ctx context.Context, characterID, normalizedQuestion string) (*convstore.Conversation, error) {
	q := `
		SELECT ` + conversationColumns + `
		FROM   conversations
		WHERE  character_id = $1 AND normalized_question = $2
		ORDER  BY created_at DESC
		LIMIT  1`

	rows, err := s.pool.Query(ctx, q, characterID, normalizedQuestion)
	if err != nil {
		return nil, fmt.Errorf("conversation store: find exact: %w", err)
	}
	c, err := pgx.CollectOneRow(rows, scanConversation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, convstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation store: find exact: %w", err)
	}
	return &c, nil
}

// ListRecent implements convstore.Store.
func (s *Store) ListRecent(ctx context.Context, characterID string, limit int) ([]convstore.Conversation, error) {
	q := `
		SELECT ` + conversationColumns + `
		FROM   conversations
		WHERE  character_id = $1
		ORDER  BY created_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, characterID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation store: list recent: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("conversation store: list recent: %w", err)
	}
	return list, nil
}

// Persist implements convstore.Store.
func (s *Store) Persist(ctx context.Context, c *convstore.Conversation) error {
	const q = `
		INSERT INTO conversations
		    (id, character_id, session_id, question, normalized_question, response, audio_path, provenance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		c.ID,
		c.CharacterID,
		c.SessionID,
		c.Question,
		c.NormalizedQuestion,
		c.Response,
		c.AudioPath,
		c.Provenance,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conversation store: persist: %w", err)
	}
	return nil
}

// GetByID implements convstore.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*convstore.Conversation, error) {
	q := `
		SELECT ` + conversationColumns + `
		FROM   conversations
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("conversation store: get: %w", err)
	}
	c, err := pgx.CollectOneRow(rows, scanConversation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, convstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation store: get: %w", err)
	}
	return &c, nil
}

// AttachAudio implements convstore.Store.
func (s *Store) AttachAudio(ctx context.Context, id, audioPath string) error {
	const q = `UPDATE conversations SET audio_path = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, audioPath)
	if err != nil {
		return fmt.Errorf("conversation store: attach audio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return convstore.ErrNotFound
	}
	return nil
}

// scanConversation scans one row in conversationColumns order.
func scanConversation(row pgx.CollectableRow) (convstore.Conversation, error) {
	var c convstore.Conversation
	err := row.Scan(
		&c.ID,
		&c.CharacterID,
		&c.SessionID,
		&c.Question,
		&c.NormalizedQuestion,
		&c.Response,
		&c.AudioPath,
		&c.Provenance,
		&c.CreatedAt,
	)
	return c, err
}
