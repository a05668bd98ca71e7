package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
)

// Compile-time interface checks.
var (
	_ convstore.Store         = (*Store)(nil)
	_ convstore.SemanticIndex = (*Store)(nil)
)

// Store implements convstore.Store on a single PostgreSQL connection pool.
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool

	// embeddingDimensions > 0 means the semantic index tables exist and
	// pgvector types are registered on every connection.
	embeddingDimensions int
}

// Option configures NewStore.
type Option func(*Store)

// WithSemanticIndex enables the pgvector-backed semantic index over cached
// questions. dimensions must match the embedding model in use (e.g. 1536 for
// OpenAI text-embedding-3-small) and requires the pgvector extension to be
// installable in the target database.
func WithSemanticIndex(dimensions int) Option {
	return func(s *Store) {
		s.embeddingDimensions = dimensions
	}
}

// NewStore connects to the PostgreSQL database at dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("conversation store: parse dsn: %w", err)
	}

	if s.embeddingDimensions > 0 {
		// Register pgvector types on every new connection so vector columns
		// can be scanned into and inserted from pgvector.Vector values.
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("conversation store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("conversation store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, s.embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("conversation store: migrate: %w", err)
	}

	s.pool = pool
	return s, nil
}

// SemanticIndexEnabled reports whether NewStore was configured with
// WithSemanticIndex.
func (s *Store) SemanticIndexEnabled() bool {
	return s.embeddingDimensions > 0
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
