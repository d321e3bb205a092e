package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/authn"
)

// CredentialSetRequest is the body of POST /credentials/set.
type CredentialSetRequest struct {
	CredentialID string `json:"credential_id"`
	ToolName string `json:"tool_name" validate:"required"`
	CredentialType string `json:"credential_type" validate:"required"`
	Payload map[string]any `json:"payload" validate:"required"`
}

// CredentialSetResponse never includes the payload.
type CredentialSetResponse struct {
	CredentialID string `json:"credential_id"`
}

func (s *Server) handleCredentialsSet(w http.ResponseWriter, r *http.Request) {
	var req CredentialSetRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	principal, ok := authn.FromContext(r.Context())
	if !ok || principal == nil {
		RespondError(w, http.StatusUnauthorized, "no authentication token provided")
		return
	}

	credentialID, err := s.vault.Set(r.Context(), req.CredentialID, req.ToolName, principal.TenantID, req.CredentialType, req.Payload, true)
	if err != nil {
		WriteError(w, s.logger, "setting credential", err)
		return
	}

	Respond(w, http.StatusCreated, CredentialSetResponse{CredentialID: credentialID})
}

func (s *Server) handleCredentialsDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		RespondTypedError(w, apperror.New(apperror.KindValidationFailed, "credential id is required"))
		return
	}

	if err := s.vault.Delete(r.Context(), id); err != nil {
		WriteError(w, s.logger, "deleting credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
