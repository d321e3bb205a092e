package httpserver

import (
	"net/http"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/store"
	"github.com/edonhq/gateway/internal/validation"
)

// IntentSetRequest is the body of POST /intent/set.
type IntentSetRequest struct {
	Objective string `json:"objective" validate:"required"`
	Scope map[string][]string `json:"scope" validate:"required"`
	Constraints map[string]any `json:"constraints"`
	RiskLevel string `json:"risk_level" validate:"required,oneof=low medium high critical"`
	ApprovedByUser bool `json:"approved_by_user"`
	MakeDefault bool `json:"make_default"`
}

// IntentSetResponse is the response of POST /intent/set.
type IntentSetResponse struct {
	IntentID string `json:"intent_id"`
}

func (s *Server) handleIntentSet(w http.ResponseWriter, r *http.Request) {
	var req IntentSetRequest
	if !DecodeAndValidate(w, r, &req) {
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

	for tool, ops := range req.Scope {
		for _, op := range ops {
			if err := validation.ValidateParamsSize(map[string]any{tool: op}); err != nil {
				WriteError(w, s.logger, "validating scope", err)
				return
			}
		}
	}

	in := store.Intent{
		TenantID: principal.TenantID,
		Objective: req.Objective,
		Scope: req.Scope,
		Constraints: req.Constraints,
		RiskLevel: req.RiskLevel,
		ApprovedByUser: req.ApprovedByUser,
	}

	intentID, err := s.store.SaveIntent(r.Context(), in)
	if err != nil {
		WriteError(w, s.logger, "saving intent", err)
		return
	}

	if req.MakeDefault {
		if err := s.store.SetDefaultIntent(r.Context(), *principal.TenantID, intentID); err != nil {
			WriteError(w, s.logger, "setting default intent", err)
			return
		}
	}

	Respond(w, http.StatusCreated, IntentSetResponse{IntentID: intentID})
}

func (s *Server) handleIntentGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := authn.FromContext(r.Context())
	if !ok || principal == nil {
		RespondError(w, http.StatusUnauthorized, "no authentication token provided")
		return
	}

	var (
		in store.Intent
		err error
	)
	if id := r.URL.Query().Get("intent_id"); id != "" {
		in, err = s.store.GetIntent(r.Context(), id)
	} else {
		in, err = s.store.GetLatestIntent(r.Context(), principal.TenantID)
	}
	if err != nil {
		WriteError(w, s.logger, "getting intent", err)
		return
	}

	Respond(w, http.StatusOK, in)
}
