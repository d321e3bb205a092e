package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edonhq/gateway/internal/apperror"
)

// BindToken associates a token hash with an agent_id the first time that
// token is used with one. Subsequent use with a different
// agent_id is rejected by the caller before BindToken is reached.
func (s *Store) BindToken(ctx context.Context, tokenHash, agentID string) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO token_agent_bindings (token_hash, agent_id, created_at, last_used_at)
	VALUES ($1, $2, now(), now())
	ON CONFLICT (token_hash) DO NOTHING
	`, tokenHash, agentID)
	if err != nil {
		return fmt.Errorf("binding token: %w", err)
	}
	return nil
}

// LookupToken returns the bound agent_id for a token hash, if any.
func (s *Store) LookupToken(ctx context.Context, tokenHash string) (agentID string, lastUsedAt time.Time, found bool, err error) {
	row := s.pool.QueryRow(ctx, `
	SELECT agent_id, last_used_at FROM token_agent_bindings WHERE token_hash = $1
	`, tokenHash)
	if scanErr := row.Scan(&agentID, &lastUsedAt); scanErr != nil {
		if scanErr == pgx.ErrNoRows {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, fmt.Errorf("looking up token binding: %w", scanErr)
	}
	return agentID, lastUsedAt, true, nil
}

// TouchToken updates last_used_at for a bound token.
func (s *Store) TouchToken(ctx context.Context, tokenHash string) error {
	tag, err := s.pool.Exec(ctx, `
	UPDATE token_agent_bindings SET last_used_at = now() WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return fmt.Errorf("touching token binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("token binding not found")
	}
	return nil
}
