package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// IncrementCounter atomically bumps the counter for (key, window_start) and
// returns the new value. Backed by a Postgres upsert, which gives the "sum
// of all observed returned values equals the final stored value" property
// directly from row-level locking — no lost updates
// under concurrency.
func (s *Store) IncrementCounter(ctx context.Context, key string, windowStart time.Time) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
	INSERT INTO counters (key, window_start, value)
	VALUES ($1, $2, 1)
	ON CONFLICT (key, window_start) DO UPDATE SET value = counters.value + 1
	RETURNING value
	`, key, windowStart).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("incrementing counter: %w", err)
	}
	return value, nil
}

// GetCounter reads the current value for (key, window_start) without
// incrementing it. Returns 0 if no bucket exists yet.
func (s *Store) GetCounter(ctx context.Context, key string, windowStart time.Time) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
	SELECT value FROM counters WHERE key = $1 AND window_start = $2
	`, key, windowStart).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("getting counter: %w", err)
	}
	return value, nil
}

// GCExpiredCounters deletes counter buckets older than olderThan. The
// gateway does not call it on any schedule, so buckets stay in Postgres
// until something calls it.
func (s *Store) GCExpiredCounters(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM counters WHERE window_start < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("gc expired counters: %w", err)
	}
	return tag.RowsAffected(), nil
}
