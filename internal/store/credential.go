package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edonhq/gateway/internal/apperror"
)

// SaveCredential is an idempotent upsert keyed by credential_id.
func (s *Store) SaveCredential(ctx context.Context, c Credential) (string, error) {
	if c.CredentialID == "" {
		c.CredentialID = "cred-" + uuid.New().String()
	}

	_, err := s.pool.Exec(ctx, `
	INSERT INTO credentials (credential_id, tool_name, tenant_id, credential_type, payload_blob, encrypted_flag, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	ON CONFLICT (credential_id) DO UPDATE
	SET tool_name = EXCLUDED.tool_name,
	tenant_id = EXCLUDED.tenant_id,
	credential_type = EXCLUDED.credential_type,
	payload_blob = EXCLUDED.payload_blob,
	encrypted_flag = EXCLUDED.encrypted_flag,
	updated_at = now()
	`, c.CredentialID, c.ToolName, c.TenantID, c.CredentialType, c.PayloadBlob, c.EncryptedFlag)
	if err != nil {
		return "", fmt.Errorf("saving credential: %w", err)
	}
	return c.CredentialID, nil
}

// DeleteCredential removes a credential row by id.
func (s *Store) DeleteCredential(ctx context.Context, credentialID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM credentials WHERE credential_id = $1`, credentialID)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("credential not found")
	}
	return nil
}

// GetCredentialByID looks up a credential by its opaque id. Not exposed
// over HTTP — callers are the Vault and internal admin paths only.
func (s *Store) GetCredentialByID(ctx context.Context, credentialID string) (Credential, error) {
	row := s.pool.QueryRow(ctx, credentialColumns+` FROM credentials WHERE credential_id = $1`, credentialID)
	return scanCredential(row)
}

// GetCredentialByTool looks up a credential by (tool_name, tenant_id). Used
// by Connectors at execution time via the Vault.
func (s *Store) GetCredentialByTool(ctx context.Context, toolName string, tenantID *uuid.UUID) (Credential, error) {
	row := s.pool.QueryRow(ctx, credentialColumns+`
	FROM credentials WHERE tool_name = $1 AND tenant_id IS NOT DISTINCT FROM $2
	`, toolName, tenantID)
	return scanCredential(row)
}

// TouchCredential records a successful use, or LastError on failure.
func (s *Store) TouchCredential(ctx context.Context, credentialID string, lastError *string) error {
	_, err := s.pool.Exec(ctx, `
	UPDATE credentials SET last_used_at = now(), last_error = $2, updated_at = now()
	WHERE credential_id = $1
	`, credentialID, lastError)
	if err != nil {
		return fmt.Errorf("touching credential: %w", err)
	}
	return nil
}

// GetIntegrationStatus reports connection status for an operator-visible
// integration. connected = (last_used_at is not null);
// a last_error never flips connected back to false.
func (s *Store) GetIntegrationStatus(ctx context.Context, tenantID *uuid.UUID, tool string) (IntegrationStatus, error) {
	row := s.pool.QueryRow(ctx, `
	SELECT last_used_at, last_error FROM credentials
	WHERE tool_name = $1 AND tenant_id IS NOT DISTINCT FROM $2
	`, tool, tenantID)

	var status IntegrationStatus
	if err := row.Scan(&status.LastOKAt, &status.LastError); err != nil {
		if err == pgx.ErrNoRows {
			return IntegrationStatus{Connected: false}, nil
		}
		return IntegrationStatus{}, fmt.Errorf("getting integration status: %w", err)
	}

	status.Connected = status.LastOKAt != nil
	return status, nil
}

const credentialColumns = `SELECT credential_id, tool_name, tenant_id, credential_type, payload_blob, encrypted_flag, created_at, updated_at, last_used_at, last_error`

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	if err := row.Scan(&c.CredentialID, &c.ToolName, &c.TenantID, &c.CredentialType, &c.PayloadBlob,
		&c.EncryptedFlag, &c.CreatedAt, &c.UpdatedAt, &c.LastUsedAt, &c.LastError); err != nil {
		if err == pgx.ErrNoRows {
			return Credential{}, apperror.NotFound("credential not found")
		}
		return Credential{}, fmt.Errorf("scanning credential: %w", err)
	}
	return c, nil
}
