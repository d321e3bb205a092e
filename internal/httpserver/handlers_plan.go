package httpserver

import (
	"net/http"
	"time"

	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/governor"
	"github.com/edonhq/gateway/internal/store"
	"github.com/edonhq/gateway/internal/validation"
)

// PlanStep is one candidate action in a POST /plan request.
type PlanStep struct {
	Tool          string         `json:"tool" validate:"required"`
	Op            string         `json:"op" validate:"required"`
	Params        map[string]any `json:"params"`
	EstimatedRisk string         `json:"estimated_risk"`
}

// PlanRequest is the body of POST /plan: a sequence of steps an agent is
// considering, evaluated against the Governor without executing anything
// or writing an audit trail.
type PlanRequest struct {
	Steps []PlanStep `json:"steps" validate:"required,min=1,dive"`
}

// PlanStepResult is the Governor's preview verdict for one PlanStep.
type PlanStepResult struct {
	Tool        string `json:"tool"`
	Op          string `json:"op"`
	Verdict     string `json:"verdict"`
	ReasonCode  string `json:"reason_code"`
	Explanation string `json:"explanation"`
}

// PlanResponse is the response of POST /plan.
type PlanResponse struct {
	Steps    []PlanStepResult `json:"steps"`
	Feasible bool             `json:"feasible"`
}

// handlePlan previews how the Governor would rule on a sequence of
// candidate actions, without executing any connector or writing an audit
// event — a dry run an agent can use before committing to a plan. Because
// nothing here is persisted, no step counts toward loop detection and
// every step is evaluated with a fresh recent-decision count of zero.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	principal, ok := authn.FromContext(r.Context())
	if !ok || principal == nil {
		RespondError(w, http.StatusUnauthorized, "no authentication token provided")
		return
	}

	resp := PlanResponse{Steps: make([]PlanStepResult, 0, len(req.Steps)), Feasible: true}
	now := time.Now()

	for _, step := range req.Steps {
		if err := validation.ValidateParamsSize(step.Params); err != nil {
			WriteError(w, s.logger, "validating plan step params", err)
			return
		}

		action := store.Action{Tool: step.Tool, Op: step.Op, Params: step.Params, EstimatedRisk: step.EstimatedRisk}

		intent, err := s.resolveIntent(r.Context(), r, principal, action)
		if err != nil {
			WriteError(w, s.logger, "resolving intent for plan step", err)
			return
		}

		gctx := governor.Context{
			AgentID:               principal.AgentID,
			FilesystemSandboxRoot: s.cfg.FilesystemSandboxRoot,
			Now:                   now,
		}
		if principal.TenantID != nil {
			gctx.TenantID = principal.TenantID.String()
		}

		decision := governor.Decide(intent, action, gctx)
		if decision.Verdict == store.VerdictBlock || decision.Verdict == store.VerdictPause {
			resp.Feasible = false
		}

		resp.Steps = append(resp.Steps, PlanStepResult{
			Tool:        step.Tool,
			Op:          step.Op,
			Verdict:     decision.Verdict,
			ReasonCode:  decision.ReasonCode,
			Explanation: decision.Explanation,
		})
	}

	Respond(w, http.StatusOK, resp)
}
