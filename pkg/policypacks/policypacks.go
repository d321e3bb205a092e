// Package policypacks implements the named preset Intents:
// personal_safe, work_safe, ops_admin, clawdbot_safe. Each pack
// is a pure Go value; Compile materializes it into a concrete
// store.Intent row for a tenant, the same "named preset, applied via
// HTTP, materializes one concrete row" shape as a provisioner
// turning a tenant name/slug into a concrete
// tenant + schema.
package policypacks

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/edonhq/gateway/internal/store"
)

// Pack is a named, reusable Intent template.
type Pack struct {
	Name string
	Objective string
	Scope map[string][]string
	Constraints map[string]any
	RiskLevel string
}

// Compile materializes p into a concrete Intent for tenantID. The
// resulting Intent is pre-approved: applying a policy pack is itself the
// tenant operator's act of approval.
func (p Pack) Compile(tenantID uuid.UUID) store.Intent {
	return store.Intent{
		IntentID: fmt.Sprintf("pack-%s-%s", p.Name, tenantID.String()),
		TenantID: &tenantID,
		Objective: p.Objective,
		Scope: copyScope(p.Scope),
		Constraints: copyConstraints(p.Constraints),
		RiskLevel: p.RiskLevel,
		ApprovedByUser: true,
	}
}

func copyScope(scope map[string][]string) map[string][]string {
	out := make(map[string][]string, len(scope))
	for tool, ops := range scope {
		opsCopy := make([]string, len(ops))
		copy(opsCopy, ops)
		out[tool] = opsCopy
	}
	return out
}

func copyConstraints(constraints map[string]any) map[string]any {
	out := make(map[string]any, len(constraints))
	for k, v := range constraints {
		out[k] = v
	}
	return out
}

// Registry is the minimum required set of packs.
var Registry = map[string]Pack{
	"personal_safe": {
		Name: "personal_safe",
		Objective: "Personal assistant tasks with conservative send limits",
		Scope: map[string][]string{
			"email": {"read", "summarize", "draft"},
			"search": {"query"},
			"calendar": {"read"},
		},
		Constraints: map[string]any{
			"drafts_only": true,
			"max_recipients": 1,
		},
		RiskLevel: store.RiskLow,
	},
	"work_safe": {
		Name: "work_safe",
		Objective: "Work assistant tasks with confirmation on external sends",
		Scope: map[string][]string{
			"email": {"read", "draft", "send"},
			"search": {"query"},
			"calendar": {"read", "create_event"},
		},
		Constraints: map[string]any{
			"max_recipients": 10,
			"confirm_irreversible": true,
			"escalate_risk_levels": []any{"high", "critical"},
		},
		RiskLevel: store.RiskMedium,
	},
	"ops_admin": {
		Name: "ops_admin",
		Objective: "Operations administration with detailed audit and confirmation on irreversible actions",
		Scope: map[string][]string{
			"email": {"read", "draft", "send"},
			"search": {"query"},
			"calendar": {"read", "create_event"},
			"filesystem": {"read_file", "write_file"},
		},
		Constraints: map[string]any{
			"audit_level": "detailed",
			"confirm_irreversible": true,
			"work_hours_only": false,
		},
		RiskLevel: store.RiskHigh,
	},
	"clawdbot_safe": {
		Name: "clawdbot_safe",
		Objective: "Safe proxy access to a remote clawdbot session",
		Scope: map[string][]string{
			"clawdbot": {"invoke"},
		},
		Constraints: map[string]any{
			"allowed_clawdbot_tools": []any{"sessions_list", "sessions_get", "sessions_create", "sessions_update"},
			"blocked_clawdbot_tools": []any{"sessions_delete", "sessions_destroy", "admin_reset"},
		},
		RiskLevel: store.RiskLow,
	},
}

// Lookup returns the named pack, if it exists.
func Lookup(name string) (Pack, bool) {
	p, ok := Registry[name]
	return p, ok
}

// Names lists every registered pack name, for GET /policy-packs.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	return names
}
