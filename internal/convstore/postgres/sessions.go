package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

// StartSession implements convstore.Store. Session IDs come from the client,
// so a retried start for an existing session is a no-op rather than an error.
func (s *Store) StartSession(ctx context.Context, sess *convstore.Session) error {
	const q = `
		INSERT INTO sessions (id, character_id, device_info, started_at, message_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	startedAt := sess.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, q, sess.ID, sess.CharacterID, sess.DeviceInfo, startedAt, sess.MessageCount)
	if err != nil {
		return fmt.Errorf("conversation store: start session: %w", err)
	}
	return nil
}

// EndSession implements convstore.Store. Only open sessions can be ended.
func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time, messageCount int) error {
	const q = `
		UPDATE sessions
		SET    ended_at = $2, message_count = $3
		WHERE  id = $1 AND ended_at IS NULL`

	tag, err := s.pool.Exec(ctx, q, id, endedAt, messageCount)
	if err != nil {
		return fmt.Errorf("conversation store: end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return convstore.ErrNotFound
	}
	return nil
}

// GetSession implements convstore.Store.
func (s *Store) GetSession(ctx context.Context, id string) (*convstore.Session, error) {
	const q = `
		SELECT id, character_id, device_info, started_at, ended_at, message_count
		FROM   sessions
		WHERE  id = $1`

	var sess convstore.Session
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&sess.ID,
		&sess.CharacterID,
		&sess.DeviceInfo,
		&sess.StartedAt,
		&sess.EndedAt,
		&sess.MessageCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, convstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation store: get session: %w", err)
	}
	return &sess, nil
}
