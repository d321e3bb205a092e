// Package vault is a thin typed facade over the Store's credential rows.
// It is the only path that can set or delete downstream
// secrets; no HTTP route returns a payload once written.
package vault

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/store"
)

// Backend is the subset of *store.Store the Vault depends on.
type Backend interface {
	SaveCredential(ctx context.Context, c store.Credential) (string, error)
	DeleteCredential(ctx context.Context, credentialID string) error
	GetCredentialByID(ctx context.Context, credentialID string) (store.Credential, error)
	GetCredentialByTool(ctx context.Context, toolName string, tenantID *uuid.UUID) (store.Credential, error)
	TouchCredential(ctx context.Context, credentialID string, lastError *string) error
	GetIntegrationStatus(ctx context.Context, tenantID *uuid.UUID, tool string) (store.IntegrationStatus, error)
}

// CredentialHandle is the short-lived, in-memory decrypted view a
// Connector receives at execution time. It never crosses a request
// boundary and is never marshaled back to JSON.
type CredentialHandle struct {
	CredentialID string
	ToolName string
	Type string
	Payload map[string]any
}

// DevFallback resolves a development-only credential payload for a tool
// when CREDENTIALS_STRICT is off and no row exists yet. It exists so a
// developer can point a tool at a locally configured secret without first
// calling Set; production deployments leave it nil.
type DevFallback func(toolName string) (map[string]any, bool)

// Vault wraps a Backend with encryption and the strict-mode policy.
type Vault struct {
	backend Backend
	cipher *Cipher
	strict bool
	fallback DevFallback
}

// New creates a Vault. strict enables CREDENTIALS_STRICT fail-closed
// behavior: GetForExecution raises CredentialMissing instead
// of consulting fallback. fallback may be nil.
func New(backend Backend, cipher *Cipher, strict bool, fallback DevFallback) *Vault {
	return &Vault{backend: backend, cipher: cipher, strict: strict, fallback: fallback}
}

// Set is an idempotent upsert of a credential. The payload is
// encrypted before it reaches the Store.
func (v *Vault) Set(ctx context.Context, credentialID, toolName string, tenantID *uuid.UUID, credType string, payload map[string]any, encrypted bool) (string, error) {
	blob, err := v.cipher.Seal(payload)
	if err != nil {
		return "", fmt.Errorf("sealing credential payload: %w", err)
	}

	return v.backend.SaveCredential(ctx, store.Credential{
		CredentialID: credentialID,
		ToolName: toolName,
		TenantID: tenantID,
		CredentialType: credType,
		PayloadBlob: blob,
		EncryptedFlag: encrypted,
	})
}

// Delete removes a credential.
func (v *Vault) Delete(ctx context.Context, credentialID string) error {
	return v.backend.DeleteCredential(ctx, credentialID)
}

// GetForExecution returns a decrypted CredentialHandle for a Connector to
// use for a single call. With CREDENTIALS_STRICT set and
// no matching row, it raises CredentialMissing — it never falls back to
// environment or config.
func (v *Vault) GetForExecution(ctx context.Context, toolName string, tenantID *uuid.UUID) (*CredentialHandle, error) {
	cred, err := v.backend.GetCredentialByTool(ctx, toolName, tenantID)
	if err != nil {
		he, ok := apperror.As(err)
		if !ok || he.Kind != apperror.KindNotFound {
			return nil, fmt.Errorf("loading credential: %w", err)
		}
		if !v.strict && v.fallback != nil {
			if payload, found := v.fallback(toolName); found {
				return &CredentialHandle{ToolName: toolName, Type: "dev_fallback", Payload: payload}, nil
			}
		}
		return nil, apperror.New(apperror.KindCredentialMissing, fmt.Sprintf("no credential configured for tool %q", toolName))
	}

	payload, err := v.cipher.Open(cred.PayloadBlob)
	if err != nil {
		return nil, fmt.Errorf("opening credential payload: %w", err)
	}

	return &CredentialHandle{
		CredentialID: cred.CredentialID,
		ToolName: cred.ToolName,
		Type: cred.CredentialType,
		Payload: payload,
	}, nil
}

// RecordOutcome touches last_used_at on success or last_error on failure.
func (v *Vault) RecordOutcome(ctx context.Context, credentialID string, callErr error) {
	var msg *string
	if callErr != nil {
		s := callErr.Error()
		msg = &s
	}
	_ = v.backend.TouchCredential(ctx, credentialID, msg)
}

// IntegrationStatus reports the read-only connection status for
// /account/integrations.
func (v *Vault) IntegrationStatus(ctx context.Context, tenantID *uuid.UUID, tool string) (store.IntegrationStatus, error) {
	return v.backend.GetIntegrationStatus(ctx, tenantID, tool)
}
