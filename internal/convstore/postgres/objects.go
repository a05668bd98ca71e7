package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

// PutAudio implements convstore.Store. Writing to an existing path replaces
// the blob, which is how stale audio gets regenerated in place.
func (s *Store) PutAudio(ctx context.Context, obj *convstore.AudioObject) error {
	const q = `
		INSERT INTO audio_objects (path, mime_type, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET mime_type = EXCLUDED.mime_type,
		    data      = EXCLUDED.data,
		    created_at = EXCLUDED.created_at`

	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, q, obj.Path, obj.MIMEType, obj.Data, createdAt)
	if err != nil {
		return fmt.Errorf("conversation store: put audio: %w", err)
	}
	return nil
}

// GetAudio implements convstore.Store.
func (s *Store) GetAudio(ctx context.Context, path string) (*convstore.AudioObject, error) {
	const q = `
		SELECT path, mime_type, data, created_at
		FROM   audio_objects
		WHERE  path = $1`

	var obj convstore.AudioObject
	err := s.pool.QueryRow(ctx, q, path).Scan(&obj.Path, &obj.MIMEType, &obj.Data, &obj.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, convstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation store: get audio: %w", err)
	}
	return &obj, nil
}
