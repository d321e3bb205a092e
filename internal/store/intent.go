package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edonhq/gateway/internal/apperror"
)

// SaveIntent upserts an intent: generates an opaque id if
// absent, bumps updated_at. Intents are never deleted, only superseded.
func (s *Store) SaveIntent(ctx context.Context, in Intent) (string, error) {
	if in.IntentID == "" {
		in.IntentID = "int-" + uuid.New().String()
	}

	scopeJSON, err := json.Marshal(in.Scope)
	if err != nil {
		return "", fmt.Errorf("marshaling scope: %w", err)
	}
	constraintsJSON, err := json.Marshal(in.Constraints)
	if err != nil {
		return "", fmt.Errorf("marshaling constraints: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
	INSERT INTO intents (intent_id, tenant_id, objective, scope, constraints, risk_level, approved_by_user, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	ON CONFLICT (intent_id) DO UPDATE
	SET tenant_id = EXCLUDED.tenant_id,
	objective = EXCLUDED.objective,
	scope = EXCLUDED.scope,
	constraints = EXCLUDED.constraints,
	risk_level = EXCLUDED.risk_level,
	approved_by_user = EXCLUDED.approved_by_user,
	updated_at = now()
	`, in.IntentID, in.TenantID, in.Objective, scopeJSON, constraintsJSON, in.RiskLevel, in.ApprovedByUser)
	if err != nil {
		return "", fmt.Errorf("saving intent: %w", err)
	}

	return in.IntentID, nil
}

// GetIntent looks up an intent by its opaque id.
func (s *Store) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	row := s.pool.QueryRow(ctx, `
	SELECT intent_id, tenant_id, objective, scope, constraints, risk_level, approved_by_user, created_at, updated_at
	FROM intents WHERE intent_id = $1
	`, intentID)
	return scanIntent(row)
}

// GetLatestIntent returns the most recently updated intent for a tenant, or
// the most recently updated global intent if tenantID is nil.
func (s *Store) GetLatestIntent(ctx context.Context, tenantID *uuid.UUID) (Intent, error) {
	var row pgx.Row
	if tenantID != nil {
		row = s.pool.QueryRow(ctx, `
	SELECT intent_id, tenant_id, objective, scope, constraints, risk_level, approved_by_user, created_at, updated_at
	FROM intents WHERE tenant_id = $1
	ORDER BY updated_at DESC LIMIT 1
	`, *tenantID)
	} else {
		row = s.pool.QueryRow(ctx, `
	SELECT intent_id, tenant_id, objective, scope, constraints, risk_level, approved_by_user, created_at, updated_at
	FROM intents WHERE tenant_id IS NULL
	ORDER BY updated_at DESC LIMIT 1
	`)
	}
	return scanIntent(row)
}

func scanIntent(row pgx.Row) (Intent, error) {
	var in Intent
	var scopeJSON, constraintsJSON []byte

	err := row.Scan(&in.IntentID, &in.TenantID, &in.Objective, &scopeJSON, &constraintsJSON,
		&in.RiskLevel, &in.ApprovedByUser, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Intent{}, apperror.NotFound("intent not found")
		}
		return Intent{}, fmt.Errorf("scanning intent: %w", err)
	}

	if err := json.Unmarshal(scopeJSON, &in.Scope); err != nil {
		return Intent{}, fmt.Errorf("unmarshaling scope: %w", err)
	}
	if err := json.Unmarshal(constraintsJSON, &in.Constraints); err != nil {
		return Intent{}, fmt.Errorf("unmarshaling constraints: %w", err)
	}

	return in, nil
}
