package governor

import (
	"testing"
	"time"

	"github.com/edonhq/gateway/internal/store"
)

func baseIntent() store.Intent {
	return store.Intent{
		IntentID:       "int-1",
		Scope:          map[string][]string{"email": {"read", "draft", "send"}, "filesystem": {"read", "write", "delete"}, "shell": {"run"}},
		Constraints:    map[string]any{},
		ApprovedByUser: true,
	}
}

func TestDecide_AllowsInScopeApproved(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "email", Op: "read"}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictAllow {
		t.Fatalf("Verdict = %q, want ALLOW", d.Verdict)
	}
	if d.ReasonCode != store.ReasonApproved {
		t.Errorf("ReasonCode = %q, want APPROVED", d.ReasonCode)
	}
}

func TestDecide_BlocksOutOfScope(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "calendar", Op: "create_event"}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictBlock {
		t.Fatalf("Verdict = %q, want BLOCK", d.Verdict)
	}
	if d.ReasonCode != store.ReasonScopeViolation {
		t.Errorf("ReasonCode = %q, want SCOPE_VIOLATION", d.ReasonCode)
	}
}

func TestDecide_BlocksOutOfScopeWithCriticalRiskDominates(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "shell", Op: "run", Params: map[string]any{"cmd": "ls"}}
	// shell/run is in scope but still critical risk by Step 1; put it out
	// of scope to exercise the "risk dominates reason" rule.
	delete(intent.Scope, "shell")

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictBlock {
		t.Fatalf("Verdict = %q, want BLOCK", d.Verdict)
	}
	if d.ReasonCode != store.ReasonRiskTooHigh {
		t.Errorf("ReasonCode = %q, want RISK_TOO_HIGH", d.ReasonCode)
	}
}

func TestDecide_CriticalSubstringRequiresConfirmationWhenConfigured(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["confirm_irreversible"] = true
	action := store.Action{Tool: "shell", Op: "run", Params: map[string]any{"cmd": "rm -rf /"}}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictEscalate {
		t.Fatalf("Verdict = %q, want ESCALATE — confirm_irreversible must catch critical risk", d.Verdict)
	}
}

func TestDecide_OutOfScopeBlocksEvenIfApproved(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "shell", Op: "delete_user"}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictBlock {
		t.Fatalf("Verdict = %q, want BLOCK", d.Verdict)
	}
}

func TestDecide_DraftsOnlyDegradesSend(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["drafts_only"] = true
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": []any{"a@example.com"}}}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictDegrade {
		t.Fatalf("Verdict = %q, want DEGRADE", d.Verdict)
	}
	if d.ReasonCode != store.ReasonDegradedToSafeAlt {
		t.Errorf("ReasonCode = %q, want DEGRADED_TO_SAFE_ALTERNATIVE", d.ReasonCode)
	}
	if d.SafeAlternative == nil || d.SafeAlternative.Op != "draft" {
		t.Errorf("SafeAlternative = %+v, want op=draft", d.SafeAlternative)
	}
}

func TestDecide_MaxRecipientsExceededEscalates(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["max_recipients"] = 1
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": []any{"a@example.com", "b@example.com"}}}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictEscalate {
		t.Fatalf("Verdict = %q, want ESCALATE", d.Verdict)
	}
	if d.Escalation == nil {
		t.Fatal("Escalation should be populated")
	}
	if d.ReasonCode != store.ReasonNeedConfirmation {
		t.Errorf("ReasonCode = %q, want NEED_CONFIRMATION", d.ReasonCode)
	}
	wantOptions := []string{"allow_once", "draft_only", "keep_blocking", "cancel"}
	gotOptions := make([]string, len(d.Escalation.Options))
	for i, opt := range d.Escalation.Options {
		gotOptions[i] = opt.ID
	}
	for _, want := range wantOptions {
		if !contains(gotOptions, want) {
			t.Errorf("Escalation.Options = %v, missing %q", gotOptions, want)
		}
	}
}

func TestDecide_MaxRecipientsAllowOnceApproves(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["max_recipients"] = 1
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": []any{"a@example.com", "b@example.com"}}}

	d := Decide(intent, action, Context{Approvals: []string{"allow_once"}})

	if d.Verdict != store.VerdictAllow {
		t.Fatalf("Verdict = %q, want ALLOW on retry with allow_once", d.Verdict)
	}
}

func TestDecide_UnboundedRecipientsWithNoMaxIsCriticalAndEscalates(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": []any{"a@example.com", "b@example.com", "c@example.com"}}}
	// email:send is in scope, so Step 2 passes; critical risk alone does not
	// block here since scope passed — but confirm_irreversible would. Verify
	// at minimum the risk computation does not silently allow it.
	intent.Constraints["confirm_irreversible"] = true

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictEscalate {
		t.Fatalf("Verdict = %q, want ESCALATE due to confirm_irreversible on critical risk", d.Verdict)
	}
}

func TestDecide_ClawdbotBlockedToolTakesPrecedence(t *testing.T) {
	intent := baseIntent()
	intent.Scope["clawdbot"] = []string{"invoke"}
	intent.Constraints["allowed_clawdbot_tools"] = []any{"sessions_list", "sessions_delete"}
	intent.Constraints["blocked_clawdbot_tools"] = []any{"sessions_delete"}
	action := store.Action{Tool: "clawdbot", Op: "invoke", Params: map[string]any{"tool": "sessions_delete"}}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictBlock {
		t.Fatalf("Verdict = %q, want BLOCK — blocked list must win over allowed list", d.Verdict)
	}
}

func TestDecide_ClawdbotNotInAllowedListBlocks(t *testing.T) {
	intent := baseIntent()
	intent.Scope["clawdbot"] = []string{"invoke"}
	intent.Constraints["allowed_clawdbot_tools"] = []any{"sessions_list"}
	action := store.Action{Tool: "clawdbot", Op: "invoke", Params: map[string]any{"tool": "sessions_create"}}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictBlock {
		t.Fatalf("Verdict = %q, want BLOCK", d.Verdict)
	}
}

func TestDecide_WorkHoursOnlyBlocksOutsideWindow(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["work_hours_only"] = true
	action := store.Action{Tool: "email", Op: "read"}

	night := time.Date(2026, 7, 29, 23, 0, 0, 0, time.UTC)
	d := Decide(intent, action, Context{Now: night})

	if d.Verdict != store.VerdictBlock {
		t.Fatalf("Verdict = %q, want BLOCK", d.Verdict)
	}
	if d.ReasonCode != store.ReasonOutOfHours {
		t.Errorf("ReasonCode = %q, want OUT_OF_HOURS", d.ReasonCode)
	}
}

func TestDecide_WorkHoursOnlyAllowsInsideWindow(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["work_hours_only"] = true
	action := store.Action{Tool: "email", Op: "read"}

	noon := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	d := Decide(intent, action, Context{Now: noon})

	if d.Verdict != store.VerdictAllow {
		t.Fatalf("Verdict = %q, want ALLOW", d.Verdict)
	}
}

func TestDecide_UnapprovedIntentEscalatesSideEffectOp(t *testing.T) {
	intent := baseIntent()
	intent.ApprovedByUser = false
	action := store.Action{Tool: "email", Op: "draft"}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictEscalate {
		t.Fatalf("Verdict = %q, want ESCALATE", d.Verdict)
	}
	if d.ReasonCode != store.ReasonIntentNotApproved {
		t.Errorf("ReasonCode = %q, want INTENT_NOT_APPROVED", d.ReasonCode)
	}
}

func TestDecide_UnapprovedIntentAllowsPlainRead(t *testing.T) {
	intent := baseIntent()
	intent.ApprovedByUser = false
	action := store.Action{Tool: "email", Op: "read"}

	d := Decide(intent, action, Context{})

	if d.Verdict != store.VerdictAllow {
		t.Fatalf("Verdict = %q, want ALLOW — a low-risk read needs no approval", d.Verdict)
	}
}

func TestDecide_LoopDetectionPausesRegardlessOfUnderlyingVerdict(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "email", Op: "read"}

	d := Decide(intent, action, Context{RecentDecisionCount: 5})

	if d.Verdict != store.VerdictPause {
		t.Fatalf("Verdict = %q, want PAUSE", d.Verdict)
	}
	if d.ReasonCode != store.ReasonLoopDetected {
		t.Errorf("ReasonCode = %q, want LOOP_DETECTED", d.ReasonCode)
	}
}

func TestDecide_LoopDetectionBelowThresholdDoesNotPause(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "email", Op: "read"}

	d := Decide(intent, action, Context{RecentDecisionCount: 4})

	if d.Verdict == store.VerdictPause {
		t.Error("Verdict should not be PAUSE below the loop threshold")
	}
}

func TestDecide_FilesystemEscapeIsCritical(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["confirm_irreversible"] = true
	action := store.Action{Tool: "filesystem", Op: "delete", Params: map[string]any{"path": "/etc/passwd"}}

	d := Decide(intent, action, Context{FilesystemSandboxRoot: "/sandbox"})

	if d.Verdict != store.VerdictEscalate {
		t.Fatalf("Verdict = %q, want ESCALATE (critical risk + confirm_irreversible)", d.Verdict)
	}
}

func TestDecide_FilesystemWithinSandboxIsNotCritical(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["confirm_irreversible"] = true
	action := store.Action{Tool: "filesystem", Op: "delete", Params: map[string]any{"path": "/sandbox/tmp/file.txt"}}

	d := Decide(intent, action, Context{FilesystemSandboxRoot: "/sandbox"})

	if d.Verdict == store.VerdictEscalate {
		t.Error("a within-sandbox delete should not trigger the critical-risk escalation path")
	}
}

func TestDecide_SameInputsProduceSameDecision(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": []any{"a@example.com"}}}
	ctx := Context{RecentDecisionCount: 1}

	d1 := Decide(intent, action, ctx)
	d2 := Decide(intent, action, ctx)

	if d1.Verdict != d2.Verdict || d1.ReasonCode != d2.ReasonCode || d1.ActionFingerprint != d2.ActionFingerprint {
		t.Error("Decide() must be deterministic for identical inputs")
	}
}

func TestDecide_ReasonApprovedOnlyForAllow(t *testing.T) {
	intent := baseIntent()
	action := store.Action{Tool: "calendar", Op: "read"}

	d := Decide(intent, action, Context{})
	if d.Verdict == store.VerdictAllow && d.ReasonCode != store.ReasonApproved {
		t.Error("ReasonCode must be APPROVED whenever Verdict is ALLOW")
	}
	if d.Verdict != store.VerdictAllow && d.ReasonCode == store.ReasonApproved {
		t.Error("ReasonCode must not be APPROVED unless Verdict is ALLOW")
	}
}

func TestDecide_SafeAlternativeOnlyForDegrade(t *testing.T) {
	intent := baseIntent()
	intent.Constraints["drafts_only"] = true
	action := store.Action{Tool: "email", Op: "send"}

	d := Decide(intent, action, Context{})
	if d.Verdict == store.VerdictDegrade && d.SafeAlternative == nil {
		t.Error("SafeAlternative must be present whenever Verdict is DEGRADE")
	}
}
