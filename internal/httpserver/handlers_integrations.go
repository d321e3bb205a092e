package httpserver

import (
	"net/http"

	"github.com/edonhq/gateway/internal/antibypass"
	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/pkg/connectors/remotebot"
)

// handleIntegrationsClawdbotConnect accepts either the current
// {base_url, auth_mode, secret} credential shape or the legacy
// {gateway_url, gateway_token} shape, normalizing both into one
// Credential row via remotebot.NormalizeCredential.
func (s *Server) handleIntegrationsClawdbotConnect(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if !decodeValidated(w, r, &raw) {
		return
	}

	hasCurrent := raw["base_url"] != nil && raw["secret"] != nil
	hasLegacy := raw["gateway_url"] != nil && raw["gateway_token"] != nil
	if !hasCurrent && !hasLegacy {
		RespondTypedError(w, apperror.New(apperror.KindValidationFailed,
				"body must contain either {base_url, secret} or {gateway_url, gateway_token}"))
		return
	}

	principal, ok := authn.FromContext(r.Context())
	if !ok || principal == nil {
		RespondError(w, http.StatusUnauthorized, "no authentication token provided")
		return
	}
	if principal.TenantID == nil {
		RespondTypedError(w, apperror.New(apperror.KindForbidden, "this token is not scoped to a tenant"))
		return
	}

	payload := remotebot.NormalizeCredential(raw)
	credentialID, err := s.vault.Set(r.Context(), "", "clawdbot", principal.TenantID, "bot_gateway", payload, true)
	if err != nil {
		WriteError(w, s.logger, "connecting clawdbot integration", err)
		return
	}

	Respond(w, http.StatusCreated, map[string]any{"credential_id": credentialID, "tool_name": "clawdbot"})
}

// accountIntegration is one row of GET /account/integrations:
// {connected, reachability, bypass_risk, recommendation?}.
type accountIntegration struct {
	Tool string `json:"tool"`
	Connected bool `json:"connected"`
	Reachability string `json:"reachability,omitempty"`
	BypassRisk string `json:"bypass_risk"`
	Recommendation string `json:"recommendation,omitempty"`
}

func (s *Server) handleAccountIntegrations(w http.ResponseWriter, r *http.Request) {
	principal, ok := authn.FromContext(r.Context())
	if !ok || principal == nil {
		RespondError(w, http.StatusUnauthorized, "no authentication token provided")
		return
	}

	tools := s.connectors.Tools()
	out := make([]accountIntegration, 0, len(tools))
	for _, tool := range tools {
		status, err := s.vault.IntegrationStatus(r.Context(), principal.TenantID, tool)
		if err != nil {
			WriteError(w, s.logger, "getting integration status", err)
			return
		}

		row := accountIntegration{Tool: tool, Connected: status.Connected, BypassRisk: "low"}
		if tool == "clawdbot" {
			class := s.reachability(r)
			row.Reachability = string(class)
			if class == antibypass.ClassPublic || class == antibypass.ClassUnknown {
				row.BypassRisk = "high"
				row.Recommendation = "isolate the downstream bot gateway on a loopback or private network and enable NETWORK_GATING"
			}
		}
		out = append(out, row)
	}

	Respond(w, http.StatusOK, map[string]any{"integrations": out})
}
