package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// ErrSemanticIndexDisabled is returned by index operations when the store was
// created without WithSemanticIndex.
var ErrSemanticIndexDisabled = errors.New("conversation store: semantic index disabled")

// IndexQuestion implements convstore.SemanticIndex. Re-indexing an existing
// conversation replaces its embedding.
func (s *Store) IndexQuestion(ctx context.Context, conversationID, characterID string, embedding []float32) error {
	if s.embeddingDimensions <= 0 {
		return ErrSemanticIndexDisabled
	}
	if len(embedding) != s.embeddingDimensions {
		return fmt.Errorf("conversation store: index question: embedding has %d dimensions, schema expects %d",
			len(embedding), s.embeddingDimensions)
	}

	const q = `
		INSERT INTO question_embeddings (conversation_id, character_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id) DO UPDATE
		SET character_id = EXCLUDED.character_id,
		    embedding    = EXCLUDED.embedding`

	_, err := s.pool.Exec(ctx, q, conversationID, characterID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("conversation store: index question: %w", err)
	}
	return nil
}

// NearestQuestions implements convstore.SemanticIndex. Results are ordered by
// ascending cosine distance.
func (s *Store) NearestQuestions(ctx context.Context, characterID string, embedding []float32, limit int) ([]string, error) {
	if s.embeddingDimensions <= 0 {
		return nil, ErrSemanticIndexDisabled
	}

	const q = `
		SELECT conversation_id
		FROM   question_embeddings
		WHERE  character_id = $1
		ORDER  BY embedding <=> $2
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, characterID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("conversation store: nearest questions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("conversation store: nearest questions: %w", err)
	}
	return ids, nil
}
