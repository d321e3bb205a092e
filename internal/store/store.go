package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the single process-wide persistence handle. Every other component receives *Store and calls typed
// operations on it; none hold a raw *pgxpool.Pool themselves.
type Store struct {
	pool *pgxpool.Pool
	logger *slog.Logger
}

// New wraps an already-connected pool. Use platform.NewPostgresPool to
// build the pool and platform.RunMigrations to apply pending
// migrations before calling New.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity for readiness/health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
