package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/pkg/policypacks"
)

func (s *Server) handlePolicyPacksList(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, map[string]any{"packs": policypacks.Names()})
}

// PolicyPackApplyResponse is the response of POST /policy-packs/{name}/apply.
type PolicyPackApplyResponse struct {
	IntentID string `json:"intent_id"`
}

func (s *Server) handlePolicyPackApply(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pack, ok := policypacks.Lookup(name)
	if !ok {
		RespondTypedError(w, apperror.New(apperror.KindNotFound, "no such policy pack"))
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

	intent := pack.Compile(*principal.TenantID)

	intentID, err := s.store.SaveIntent(r.Context(), intent)
	if err != nil {
		WriteError(w, s.logger, "saving policy pack intent", err)
		return
	}

	if err := s.store.SetDefaultIntent(r.Context(), *principal.TenantID, intentID); err != nil {
		WriteError(w, s.logger, "setting default intent", err)
		return
	}

	Respond(w, http.StatusOK, PolicyPackApplyResponse{IntentID: intentID})
}
