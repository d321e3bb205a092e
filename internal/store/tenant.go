package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edonhq/gateway/internal/apperror"
)

// SaveTenant upserts a tenant row (used by the provisioning path, out of
// scope per but still needed so Anti-Bypass and tests have a
// tenant to work against).
func (s *Store) SaveTenant(ctx context.Context, t Tenant) (uuid.UUID, error) {
	if t.TenantID == uuid.Nil {
		t.TenantID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
	INSERT INTO tenants (tenant_id, plan, status, default_intent_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, now(), now())
	ON CONFLICT (tenant_id) DO UPDATE
	SET plan = EXCLUDED.plan,
	status = EXCLUDED.status,
	default_intent_id = EXCLUDED.default_intent_id,
	updated_at = now()
	`, t.TenantID, t.Plan, t.Status, t.DefaultIntentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("saving tenant: %w", err)
	}
	return t.TenantID, nil
}

// GetTenant looks up a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx, `
	SELECT tenant_id, plan, status, default_intent_id, created_at, updated_at
	FROM tenants WHERE tenant_id = $1
	`, tenantID).Scan(&t.TenantID, &t.Plan, &t.Status, &t.DefaultIntentID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Tenant{}, apperror.NotFound("tenant not found")
		}
		return Tenant{}, fmt.Errorf("getting tenant: %w", err)
	}
	return t, nil
}

// SetDefaultIntent records the tenant's default_intent_id, used when a
// PolicyPack is applied.
func (s *Store) SetDefaultIntent(ctx context.Context, tenantID uuid.UUID, intentID string) error {
	tag, err := s.pool.Exec(ctx, `
	UPDATE tenants SET default_intent_id = $2, updated_at = now() WHERE tenant_id = $1
	`, tenantID, intentID)
	if err != nil {
		return fmt.Errorf("setting default intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("tenant not found")
	}
	return nil
}

// BindAPIKey associates a token hash with a tenant, used by the dev/admin
// API-key provisioning path.
func (s *Store) BindAPIKey(ctx context.Context, tokenHash string, tenantID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO tenant_api_keys (token_hash, tenant_id, created_at)
	VALUES ($1, $2, now())
	ON CONFLICT (token_hash) DO UPDATE SET tenant_id = EXCLUDED.tenant_id
	`, tokenHash, tenantID)
	if err != nil {
		return fmt.Errorf("binding api key: %w", err)
	}
	return nil
}

// LookupAPIKey resolves a tenant-scoped API key's token hash to its tenant,
// touching last_used_at.
func (s *Store) LookupAPIKey(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var tenantID uuid.UUID
	err := s.pool.QueryRow(ctx, `
	UPDATE tenant_api_keys SET last_used_at = now()
	WHERE token_hash = $1
	RETURNING tenant_id
	`, tokenHash).Scan(&tenantID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, apperror.NotFound("api key not found")
		}
		return uuid.Nil, fmt.Errorf("looking up api key: %w", err)
	}
	return tenantID, nil
}
