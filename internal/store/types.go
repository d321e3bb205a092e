// Package store is the single synchronization point for persistence: every other component receives a *Store handle and calls typed
// operations on it. Backed by Postgres via pgx/v5 and pgxpool.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Tenant.
type Tenant struct {
	TenantID uuid.UUID
	Plan string
	Status string
	DefaultIntentID *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the tenant may cause executions.
func (t Tenant) Active() bool { return t.Status == "active" }

// Intent. Scope maps tool name to the set of allowed operations;
// Constraints is a map of well-known keys consumed by the Governor.
type Intent struct {
	IntentID string
	TenantID *uuid.UUID
	Objective string
	Scope map[string][]string
	Constraints map[string]any
	RiskLevel string
	ApprovedByUser bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Action. EstimatedRisk is caller-supplied and advisory;
// ComputedRisk is filled in by the Governor and is the only value the
// Governor itself consults for verdict purposes.
type Action struct {
	Tool string
	Op string
	Params map[string]any
	EstimatedRisk string
	ComputedRisk string
}

// Verdict values.
const (
	VerdictAllow = "ALLOW"
	VerdictDegrade = "DEGRADE"
	VerdictEscalate = "ESCALATE"
	VerdictBlock = "BLOCK"
	VerdictPause = "PAUSE"
)

// Reason codes.
const (
	ReasonApproved = "APPROVED"
	ReasonScopeViolation = "SCOPE_VIOLATION"
	ReasonRiskTooHigh = "RISK_TOO_HIGH"
	ReasonNeedConfirmation = "NEED_CONFIRMATION"
	ReasonIntentNotApproved = "INTENT_NOT_APPROVED"
	ReasonLoopDetected = "LOOP_DETECTED"
	ReasonRateLimit = "RATE_LIMIT"
	ReasonOutOfHours = "OUT_OF_HOURS"
	ReasonDegradedToSafeAlt = "DEGRADED_TO_SAFE_ALTERNATIVE"
	ReasonDataExfil = "DATA_EXFIL"
)

// Risk levels.
const (
	RiskLow = "low"
	RiskMedium = "medium"
	RiskHigh = "high"
	RiskCritical = "critical"
)

// EscalationOption is one choice in an ESCALATE decision's confirmation
// question.
type EscalationOption struct {
	ID string `json:"id"`
	Label string `json:"label"`
}

// Escalation carries the confirmation question for ESCALATE verdicts.
type Escalation struct {
	Question string `json:"question"`
	Options []EscalationOption `json:"options"`
}

// SafeAlternative describes the degraded operation substituted for DEGRADE
// verdicts.
type SafeAlternative struct {
	Op string `json:"op"`
}

// Decision. Immutable once written.
type Decision struct {
	DecisionID string
	ActionFingerprint string
	Verdict string
	ReasonCode string
	Explanation string
	SafeAlternative *SafeAlternative
	Escalation *Escalation
	Timestamp time.Time
}

// AuditEvent. Append-only.
type AuditEvent struct {
	EventID string
	DecisionID string
	TenantID *uuid.UUID
	AgentID *string
	IntentID *string
	Verdict string
	ActionSnapshot map[string]any
	ContextSnapshot map[string]any
	Timestamp time.Time
	LatencyMS int64
}

// Credential. PayloadBlob is encrypted at rest by the Vault
// before it ever reaches the Store; the Store treats it as an opaque blob.
type Credential struct {
	CredentialID string
	ToolName string
	TenantID *uuid.UUID
	CredentialType string
	PayloadBlob []byte
	EncryptedFlag bool
	CreatedAt time.Time
	UpdatedAt time.Time
	LastUsedAt *time.Time
	LastError *string
}

// Counter. Key holds the principal and window granularity as encoded by
// the RateLimiter; WindowStart is the time bucket. Monotonic within a bucket.
type Counter struct {
	Key string
	Value int64
	WindowStart time.Time
}

// TokenAgentBinding.
type TokenAgentBinding struct {
	TokenHash string
	AgentID string
	CreatedAt time.Time
	LastUsedAt time.Time
}

// TelegramConnectCode.
type TelegramConnectCode struct {
	Code string
	TenantID uuid.UUID
	ExpiresAt time.Time
}

// IntegrationStatus is the read model for GET /account/integrations.
type IntegrationStatus struct {
	Connected bool
	LastOKAt *time.Time
	LastError *string
}

// AuditFilters narrows query_audit_events. Limit is clamped to
// 1000 by the Store.
type AuditFilters struct {
	AgentID *string
	Verdict *string
	IntentID *string
	Limit int
}

// DecisionFilters narrows query_decisions.
type DecisionFilters struct {
	Verdict *string
	Limit int
}
