// Package governor implements the single pure decision function that maps
// an Intent, an Action, and a request Context to a Decision.
// It performs no I/O: every input it needs — including the recent-decision
// count used for loop detection — is resolved by the caller beforehand.
package governor

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/edonhq/gateway/internal/store"
)

// riskRank orders risk levels so "escalate" steps can only raise, never
// lower, the computed risk.
var riskRank = map[string]int{
	store.RiskLow: 0,
	store.RiskMedium: 1,
	store.RiskHigh: 2,
	store.RiskCritical: 3,
}

// Context carries everything about the calling request that the Governor
// itself cannot derive from (intent, action) alone.
type Context struct {
	AgentID string
	TenantID string
	SessionID string
	// Approvals lists approval tokens supplied with this attempt, e.g.
	// "allow_once" for a previously-escalated max_recipients retry.
	Approvals []string

	// FilesystemSandboxRoot bounds filesystem delete/write ops for the
	// critical-risk check in Step 1.
	FilesystemSandboxRoot string

	// Location is the tenant's local timezone for work_hours_only. Defaults
	// to UTC when nil.
	Location *time.Location
	// Now is the instant the request is evaluated at. Callers must supply
	// wall-clock time explicitly so Decide stays a pure function of its
	// arguments.
	Now time.Time

	// RecentDecisionCount is how many decisions sharing this action's
	// fingerprint were recorded in the loop-detection window, resolved by the Pipeline via the Store before calling Decide.
	RecentDecisionCount int
	// LoopThreshold overrides the N=5 default; zero falls back to it.
	// LoopWindow is not read by Decide: the window is whatever period the
	// caller counted RecentDecisionCount over.
	LoopThreshold int
	LoopWindow time.Duration
}

func (c Context) hasApproval(token string) bool {
	for _, a := range c.Approvals {
		if a == token {
			return true
		}
	}
	return false
}

func (c Context) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

const (
	defaultLoopThreshold = 5
	defaultLoopWindow = 10 * time.Second
)

var criticalSubstrings = []string{"rm -rf", "DROP TABLE", "; rm ", "mkfs", "dd if="}

var sendClassOps = map[string]bool{
	"send": true,
	"create_event": true,
	"create_issue": true,
}

// Decide applies Steps 1-5 and returns a Decision. ActionFingerprint
// is always populated; DecisionID and Timestamp are left for the Store to fill
// in at persistence time.
func Decide(intent store.Intent, action store.Action, ctx Context) store.Decision {
	fingerprint := Fingerprint(action, intent.IntentID)

	computedRisk := computeRisk(intent, action, ctx)
	action.ComputedRisk = computedRisk

	d := store.Decision{ActionFingerprint: fingerprint}

	if verdict, ok := scopeCheck(intent, action, computedRisk, &d); ok {
		return finalizeLoop(verdict, ctx, fingerprint)
	}

	if verdict, ok := constraintChecks(intent, action, computedRisk, ctx, &d); ok {
		return finalizeLoop(verdict, ctx, fingerprint)
	}

	if verdict, ok := approvalGate(intent, action, computedRisk, &d); ok {
		return finalizeLoop(verdict, ctx, fingerprint)
	}

	d.Verdict = store.VerdictAllow
	d.ReasonCode = store.ReasonApproved
	d.Explanation = "action is within scope and approved"
	return finalizeLoop(d, ctx, fingerprint)
}

// computeRisk implements Step 1.
func computeRisk(intent store.Intent, action store.Action, ctx Context) string {
	risk := action.EstimatedRisk
	if risk == "" {
		risk = store.RiskLow
	}

	if isShellRun(action) || containsCriticalSubstring(action.Params) || isFilesystemEscape(action, ctx) || isUnboundedSend(intent, action) {
		risk = raise(risk, store.RiskCritical)
	}

	if isSendClass(action.Op) {
		if maxN, ok := intConstraint(intent, "max_recipients"); ok && recipientCount(action.Params) > maxN {
			risk = raise(risk, store.RiskHigh)
		}
	}

	return risk
}

func raise(current, candidate string) string {
	if riskRank[candidate] > riskRank[current] {
		return candidate
	}
	return current
}

func isShellRun(action store.Action) bool {
	return action.Tool == "shell" && action.Op == "run"
}

func containsCriticalSubstring(params map[string]any) bool {
	blob, err := json.Marshal(params)
	if err != nil {
		return false
	}
	s := string(blob)
	for _, needle := range criticalSubstrings {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// isFilesystemEscape reports whether a filesystem delete/write op targets a
// path outside the declared sandbox. With no sandbox
// root configured, every path is treated as outside it — fail closed.
func isFilesystemEscape(action store.Action, ctx Context) bool {
	if action.Tool != "filesystem" || (action.Op != "delete" && action.Op != "write") {
		return false
	}
	path, _ := action.Params["path"].(string)
	if path == "" {
		return false
	}
	if ctx.FilesystemSandboxRoot == "" {
		return true
	}

	root := filepath.Clean(ctx.FilesystemSandboxRoot)
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isUnboundedSend(intent store.Intent, action store.Action) bool {
	if !isSendClass(action.Op) {
		return false
	}
	if recipientCount(action.Params) <= 1 {
		return false
	}
	_, hasMax := intConstraint(intent, "max_recipients")
	return !hasMax
}

func isSendClass(op string) bool { return sendClassOps[op] }

func recipientCount(params map[string]any) int {
	for _, key := range []string{"recipients", "to"} {
		if raw, ok := params[key]; ok {
			if arr, ok := raw.([]any); ok {
				return len(arr)
			}
		}
	}
	return 0
}

func intConstraint(intent store.Intent, key string) (int, bool) {
	raw, ok := intent.Constraints[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func boolConstraint(intent store.Intent, key string) bool {
	raw, ok := intent.Constraints[key]
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

func stringSliceConstraint(intent store.Intent, key string) ([]string, bool) {
	raw, ok := intent.Constraints[key]
	if !ok {
		return nil, false
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

// scopeCheck implements Step 2.
func scopeCheck(intent store.Intent, action store.Action, computedRisk string, d *store.Decision) (store.Decision, bool) {
	allowedOps, toolInScope := intent.Scope[action.Tool]
	opInScope := toolInScope && contains(allowedOps, action.Op)
	if opInScope {
		return store.Decision{}, false
	}

	d.Verdict = store.VerdictBlock
	if computedRisk == store.RiskCritical {
		d.ReasonCode = store.ReasonRiskTooHigh
		d.Explanation = "computed risk is critical"
	} else {
		d.ReasonCode = store.ReasonScopeViolation
		d.Explanation = "tool/op is outside the intent's declared scope"
	}
	return *d, true
}

// constraintChecks implements Step 3, in a fixed evaluation order:
// clawdbot allow/block lists, work_hours_only, drafts_only, max_recipients,
// confirm_irreversible, escalate_risk_levels.
func constraintChecks(intent store.Intent, action store.Action, computedRisk string, ctx Context, d *store.Decision) (store.Decision, bool) {
	if action.Tool == "clawdbot" && action.Op == "invoke" {
		innerTool, _ := action.Params["tool"].(string)

		if blocked, ok := stringSliceConstraint(intent, "blocked_clawdbot_tools"); ok && contains(blocked, innerTool) {
			d.Verdict = store.VerdictBlock
			d.ReasonCode = store.ReasonScopeViolation
			d.Explanation = "clawdbot tool is explicitly blocked"
			return *d, true
		}
		if allowed, ok := stringSliceConstraint(intent, "allowed_clawdbot_tools"); ok && !contains(allowed, innerTool) {
			d.Verdict = store.VerdictBlock
			d.ReasonCode = store.ReasonScopeViolation
			d.Explanation = "clawdbot tool is not in the allowed list"
			return *d, true
		}
	}

	if boolConstraint(intent, "work_hours_only") && !withinWorkHours(ctx) {
		d.Verdict = store.VerdictBlock
		d.ReasonCode = store.ReasonOutOfHours
		d.Explanation = "action attempted outside the tenant's configured work hours"
		return *d, true
	}

	if boolConstraint(intent, "drafts_only") && action.Op == "send" {
		d.Verdict = store.VerdictDegrade
		d.ReasonCode = store.ReasonDegradedToSafeAlt
		d.Explanation = "drafts_only constraint downgrades send to draft"
		d.SafeAlternative = &store.SafeAlternative{Op: "draft"}
		return *d, true
	}

	if isSendClass(action.Op) {
		if maxN, ok := intConstraint(intent, "max_recipients"); ok && recipientCount(action.Params) > maxN {
			if ctx.hasApproval("allow_once") {
				// fall through to the approval gate / final ALLOW path
			} else {
				d.Verdict = store.VerdictEscalate
				d.ReasonCode = store.ReasonNeedConfirmation
				d.Explanation = "recipient count exceeds the intent's max_recipients constraint"
				d.Escalation = &store.Escalation{
					Question: "This action exceeds the allowed recipient count. Send anyway?",
					Options: []store.EscalationOption{
						{ID: "allow_once", Label: "Allow this once"},
						{ID: "draft_only", Label: "Save as draft instead"},
						{ID: "keep_blocking", Label: "Keep blocking"},
						{ID: "cancel", Label: "Cancel"},
					},
				}
				return *d, true
			}
		}
	}

	if boolConstraint(intent, "confirm_irreversible") && riskRank[computedRisk] >= riskRank[store.RiskHigh] {
		d.Verdict = store.VerdictEscalate
		d.ReasonCode = store.ReasonNeedConfirmation
		d.Explanation = "irreversible action requires explicit confirmation"
		d.Escalation = &store.Escalation{
			Question: "This action is high risk and cannot be undone. Proceed?",
			Options: []store.EscalationOption{
				{ID: "allow_once", Label: "Proceed"},
				{ID: "cancel", Label: "Cancel"},
			},
		}
		return *d, true
	}

	if levels, ok := stringSliceConstraint(intent, "escalate_risk_levels"); ok && contains(levels, computedRisk) && !ctx.hasApproval("allow_once") {
		d.Verdict = store.VerdictEscalate
		d.ReasonCode = store.ReasonNeedConfirmation
		d.Explanation = "computed risk level requires escalation per intent policy"
		d.Escalation = &store.Escalation{
			Question: "This action's risk level requires confirmation. Proceed?",
			Options: []store.EscalationOption{
				{ID: "allow_once", Label: "Proceed"},
				{ID: "cancel", Label: "Cancel"},
			},
		}
		return *d, true
	}

	return store.Decision{}, false
}

func withinWorkHours(ctx Context) bool {
	now := ctx.Now
	if now.IsZero() {
		return true
	}
	local := now.In(ctx.location())
	hour := local.Hour()
	return hour >= 9 && hour < 18
}

// approvalGate implements Step 4.
func approvalGate(intent store.Intent, action store.Action, computedRisk string, d *store.Decision) (store.Decision, bool) {
	if intent.ApprovedByUser {
		return store.Decision{}, false
	}

	hasSideEffects := action.Op != "read" || riskRank[computedRisk] >= riskRank[store.RiskMedium]
	if !hasSideEffects {
		return store.Decision{}, false
	}

	d.Verdict = store.VerdictEscalate
	d.ReasonCode = store.ReasonIntentNotApproved
	d.Explanation = "intent has not been approved by the user"
	return *d, true
}

// finalizeLoop implements Step 5, overriding any prior verdict with PAUSE
// when the fingerprint has exceeded its loop-detection threshold.
func finalizeLoop(d store.Decision, ctx Context, fingerprint string) store.Decision {
	threshold := ctx.LoopThreshold
	if threshold <= 0 {
		threshold = defaultLoopThreshold
	}

	if ctx.RecentDecisionCount >= threshold {
		d.Verdict = store.VerdictPause
		d.ReasonCode = store.ReasonLoopDetected
		d.Explanation = "this action fingerprint has repeated past the loop-detection threshold"
		d.SafeAlternative = nil
		d.Escalation = nil
	}

	d.ActionFingerprint = fingerprint
	return d
}
