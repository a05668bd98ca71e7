// Package postgres provides the PostgreSQL-backed implementation of
// convstore.Store, plus the optional pgvector-backed convstore.SemanticIndex.
//
// All tables share a single [pgxpool.Pool]. The pgvector extension is only
// required when the semantic index is enabled; without it the store runs on a
// plain PostgreSQL instance.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlConversations = `
CREATE TABLE IF NOT EXISTS conversations (
    id                  TEXT         PRIMARY KEY,
    character_id        TEXT         NOT NULL,
    session_id          TEXT         NOT NULL DEFAULT '',
    question            TEXT         NOT NULL,
    normalized_question TEXT         NOT NULL,
    response            TEXT         NOT NULL,
    audio_path          TEXT         NOT NULL DEFAULT '',
    provenance          TEXT         NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversations_exact
    ON conversations (character_id, normalized_question, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_conversations_recent
    ON conversations (character_id, created_at DESC);
`

const ddlAudioObjects = `
CREATE TABLE IF NOT EXISTS audio_objects (
    path        TEXT         PRIMARY KEY,
    mime_type   TEXT         NOT NULL,
    data        BYTEA        NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlShares = `
CREATE TABLE IF NOT EXISTS shares (
    id           TEXT         NOT NULL,
    character_id TEXT         NOT NULL,
    question     TEXT         NOT NULL,
    response     TEXT         NOT NULL,
    audio_path   TEXT         NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (character_id, id)
);
`

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT         PRIMARY KEY,
    character_id  TEXT         NOT NULL,
    device_info   TEXT         NOT NULL DEFAULT '',
    started_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at      TIMESTAMPTZ,
    message_count INTEGER      NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_character
    ON sessions (character_id, started_at DESC);
`

// ddlEmbeddings returns the semantic index DDL with the embedding dimension
// baked into the column type. Changing the dimension after the first
// migration requires a manual schema change.
func ddlEmbeddings(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS question_embeddings (
    conversation_id TEXT       PRIMARY KEY REFERENCES conversations (id) ON DELETE CASCADE,
    character_id    TEXT       NOT NULL,
    embedding       vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_question_embeddings_character
    ON question_embeddings (character_id);

CREATE INDEX IF NOT EXISTS idx_question_embeddings_embedding
    ON question_embeddings USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// Migrate creates or ensures all required tables exist. It is idempotent and
// safe to call on every application start. embeddingDimensions <= 0 skips the
// semantic index DDL entirely, so the pgvector extension is not needed.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlConversations,
		ddlAudioObjects,
		ddlShares,
		ddlSessions,
	}
	if embeddingDimensions > 0 {
		statements = append(statements, ddlEmbeddings(embeddingDimensions))
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
