package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/auditor"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/governor"
	"github.com/edonhq/gateway/internal/store"
	"github.com/edonhq/gateway/internal/telemetry"
	"github.com/edonhq/gateway/internal/validation"
	"github.com/edonhq/gateway/internal/vault"
	"github.com/edonhq/gateway/pkg/connectors"
	"github.com/edonhq/gateway/pkg/connectors/slacknotify"
)

// loopDetectionWindowSeconds is the fixed window Step 5 counts decisions
// sharing a fingerprint within.
const loopDetectionWindowSeconds = 10

// readOps are the verbs resolveIntent treats as safe to synthesize a
// minimal intent for when no configured intent can be found.
var readOps = map[string]bool{
	"read": true, "read_file": true, "query": true, "get": true, "list": true,
}

func isReadOp(op string) bool { return readOps[op] }

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Tool string `json:"tool" validate:"required"`
	Op string `json:"op" validate:"required"`
	Params map[string]any `json:"params"`
	EstimatedRisk string `json:"estimated_risk"`
	Approvals []string `json:"approvals"`
}

// ClawdbotInvokeRequest is the body of POST /clawdbot/invoke: a drop-in
// proxy shape that the Pipeline maps onto tool=clawdbot, op=invoke.
type ClawdbotInvokeRequest struct {
	Tool string `json:"tool" validate:"required"`
	Action string `json:"action" validate:"required"`
	Args map[string]any `json:"args"`
	SessionKey string `json:"session_key"`
	Approvals []string `json:"approvals"`
}

// ExecutionBlock is the response's optional "execution" member,
// present only when verdict ∈ {ALLOW, DEGRADE}.
type ExecutionBlock struct {
	Tool string `json:"tool"`
	Op string `json:"op"`
	Result any `json:"result,omitempty"`
	Observation *connectors.Observation `json:"observation,omitempty"`
}

// DecisionEnvelope is the response shape of /execute and /clawdbot/invoke.
type DecisionEnvelope struct {
	Verdict string `json:"verdict"`
	DecisionID string `json:"decision_id"`
	ReasonCode string `json:"reason_code"`
	Explanation string `json:"explanation"`
	Escalation *store.Escalation `json:"escalation,omitempty"`
	Execution *ExecutionBlock `json:"execution,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if err := validation.ValidateParamsSize(req.Params); err != nil {
		WriteError(w, s.logger, "validating action params", err)
		return
	}

	action := store.Action{Tool: req.Tool, Op: req.Op, Params: req.Params, EstimatedRisk: req.EstimatedRisk}
	s.runPipeline(w, r, action, req.Approvals)
}

func (s *Server) handleClawdbotInvoke(w http.ResponseWriter, r *http.Request) {
	var req ClawdbotInvokeRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	params := map[string]any{"tool": req.Tool, "action": req.Action, "args": req.Args}
	if req.SessionKey != "" {
		params["sessionKey"] = req.SessionKey
	}
	if err := validation.ValidateParamsSize(params); err != nil {
		WriteError(w, s.logger, "validating action params", err)
		return
	}

	action := store.Action{Tool: "clawdbot", Op: "invoke", Params: params}
	s.runPipeline(w, r, action, req.Approvals)
}

// runPipeline implements six steps, shared by /execute and
// /clawdbot/invoke.
func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, action store.Action, approvals []string) {
	ctx := r.Context()
	start := time.Now()

	principal, ok := authn.FromContext(ctx)
	if !ok || principal == nil {
		RespondTypedError(w, apperror.New(apperror.KindAuthMissing, "no authentication token provided"))
		return
	}

	intent, err := s.resolveIntent(ctx, r, principal, action)
	if err != nil {
		WriteError(w, s.logger, "resolving intent", err)
		return
	}

	fingerprint := governor.Fingerprint(action, intent.IntentID)
	recentCount, err := s.store.CountRecentDecisionsByFingerprint(ctx, fingerprint, loopDetectionWindowSeconds)
	if err != nil {
		WriteError(w, s.logger, "counting recent decisions for loop detection", err)
		return
	}

	gctx := governor.Context{
		AgentID: principal.AgentID,
		Approvals: approvals,
		FilesystemSandboxRoot: s.cfg.FilesystemSandboxRoot,
		Now: time.Now(),
		RecentDecisionCount: recentCount,
	}
	if principal.TenantID != nil {
		gctx.TenantID = principal.TenantID.String()
	}

	decision := governor.Decide(intent, action, gctx)
	decision.DecisionID = "dec-" + uuid.New().String()
	decision.Timestamp = gctx.Now

	telemetry.DecisionsTotal.WithLabelValues(decision.Verdict, decision.ReasonCode).Inc()

	detailed, _ := intent.Constraints["audit_level"].(string)
	ev := store.AuditEvent{
		TenantID: principal.TenantID,
		IntentID: &intent.IntentID,
		Verdict: decision.Verdict,
		ActionSnapshot: auditor.RedactedSnapshot(action, detailed == "detailed"),
		ContextSnapshot: map[string]any{"approvals": approvals},
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if principal.AgentID != "" {
		ev.AgentID = &principal.AgentID
	}

	if _, auditErr := s.auditor.Record(ctx, ev, decision); auditErr != nil {
		s.logger.Error("recording audit event", "error", auditErr, "decision_id", decision.DecisionID)
	}

	if decision.Verdict == store.VerdictEscalate || decision.Verdict == store.VerdictPause {
		s.notifyDecisionAlert(ctx, principal, decision)
	}

	resp := DecisionEnvelope{
		Verdict: decision.Verdict,
		DecisionID: decision.DecisionID,
		ReasonCode: decision.ReasonCode,
		Explanation: decision.Explanation,
		Escalation: decision.Escalation,
	}

	if decision.Verdict == store.VerdictAllow || decision.Verdict == store.VerdictDegrade {
		execution, dispatchErr := s.dispatch(ctx, action, decision, principal.TenantID)
		if dispatchErr != nil {
			WriteError(w, s.logger, "dispatching to connector", dispatchErr)
			return
		}
		resp.Execution = execution
	}

	telemetry.DecisionLatency.Observe(time.Since(start).Seconds())
	Respond(w, http.StatusOK, resp)
}

// resolveIntent implements Step 1.
func (s *Server) resolveIntent(ctx context.Context, r *http.Request, principal *authn.Principal, action store.Action) (store.Intent, error) {
	if id := r.Header.Get("X-Intent-ID"); id != "" {
		return s.store.GetIntent(ctx, id)
	}

	if principal.Tenant != nil && principal.Tenant.DefaultIntentID != nil {
		in, err := s.store.GetIntent(ctx, *principal.Tenant.DefaultIntentID)
		if err == nil {
			return in, nil
		}
		if !isNotFound(err) {
			return store.Intent{}, err
		}
	}

	in, err := s.store.GetLatestIntent(ctx, principal.TenantID)
	if err == nil {
		return in, nil
	}
	if !isNotFound(err) {
		return store.Intent{}, err
	}

	if !isReadOp(action.Op) {
		return store.Intent{}, apperror.NotFound("no intent configured for this tenant")
	}
	return syntheticReadIntent(principal, action), nil
}

func isNotFound(err error) bool {
	he, ok := apperror.As(err)
	return ok && he.Kind == apperror.KindNotFound
}

// syntheticReadIntent implements the Step 1 fallback: a minimal,
// non-approved intent scoped to exactly the tool/op at hand.
func syntheticReadIntent(principal *authn.Principal, action store.Action) store.Intent {
	return store.Intent{
		IntentID: "synthetic-read-only",
		TenantID: principal.TenantID,
		Objective: "synthesized minimal read-only intent",
		Scope: map[string][]string{action.Tool: {action.Op}},
		Constraints: map[string]any{},
		RiskLevel: store.RiskLow,
		ApprovedByUser: false,
	}
}

// dispatch executes the decided action against its connector and calls
// the connector's observe() hook. A connector-level failure is embedded
// in the decision envelope as
// {ok:false, error}, never surfaced as an HTTP error — only a credential
// resolution failure (e.g. CredentialMissing under CREDENTIALS_STRICT)
// propagates as a typed error, since that is an infrastructure failure,
// not a downstream tool outcome.
func (s *Server) dispatch(ctx context.Context, action store.Action, decision store.Decision, tenantID *uuid.UUID) (*ExecutionBlock, error) {
	op := action.Op
	if decision.Verdict == store.VerdictDegrade && decision.SafeAlternative != nil {
		op = decision.SafeAlternative.Op
	}

	conn, ok := s.connectors.Lookup(action.Tool)
	if !ok {
		return &ExecutionBlock{
			Tool: action.Tool, Op: op,
			Result: map[string]any{"ok": false, "error": "no connector registered for this tool"},
		}, nil
	}

	var handle *vault.CredentialHandle
	if s.vault != nil {
		h, err := s.vault.GetForExecution(ctx, action.Tool, tenantID)
		if err != nil {
			return nil, err
		}
		handle = h
	}

	result, execErr := conn.Execute(ctx, op, action.Params, toConnectorCredential(handle))
	if handle != nil {
		s.vault.RecordOutcome(ctx, handle.CredentialID, execErr)
	}
	if execErr != nil {
		return &ExecutionBlock{
			Tool: action.Tool, Op: op,
			Result: map[string]any{"ok": false, "error": execErr.Error()},
		}, nil
	}

	observation, obsErr := conn.Observe(ctx, op, result)
	if obsErr != nil {
		s.logger.Error("observing connector result", "error", obsErr, "tool", action.Tool, "op", op)
	}
	if observation == nil {
		observation = result.Observation
	}

	return &ExecutionBlock{
		Tool: action.Tool,
		Op: op,
		Result: result.Value,
		Observation: observation,
	}, nil
}

// notifyDecisionAlert posts an ESCALATE/PAUSE decision to the ops Slack
// channel. Failures are logged, never surfaced to the caller — the
// decision has already been made and audited by the time this runs.
func (s *Server) notifyDecisionAlert(ctx context.Context, principal *authn.Principal, decision store.Decision) {
	alert := slacknotify.Alert{
		DecisionID: decision.DecisionID,
		Verdict: decision.Verdict,
		ReasonCode: decision.ReasonCode,
		AgentID: principal.AgentID,
		Explanation: decision.Explanation,
	}
	if principal.TenantID != nil {
		alert.TenantID = principal.TenantID.String()
	}
	if _, _, err := s.slack.PostDecisionAlert(ctx, alert); err != nil {
		s.logger.Error("posting decision alert to slack", "error", err, "decision_id", decision.DecisionID)
	}
}

// toConnectorCredential adapts the Vault's CredentialHandle to the
// narrower shape pkg/connectors expects.
func toConnectorCredential(h *vault.CredentialHandle) *connectors.CredentialHandle {
	if h == nil {
		return nil
	}
	return &connectors.CredentialHandle{CredentialID: h.CredentialID, Type: h.Type, Payload: h.Payload}
}
