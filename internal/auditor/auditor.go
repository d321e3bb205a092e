// Package auditor wraps the Store's transactional write path with a
// failure-isolation policy: a failed audit write is logged
// and counted, never allowed to mask the Decision already handed back to
// the caller.
package auditor

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edonhq/gateway/internal/store"
)

// Backend is the subset of *store.Store the Auditor depends on.
type Backend interface {
	SaveAuditEvent(ctx context.Context, ev store.AuditEvent, d store.Decision) (string, error)
}

// Auditor persists exactly one AuditEvent and one Decision per call to
// Record, in a single transaction (delegated to the Backend).
type Auditor struct {
	backend Backend
	logger *slog.Logger
	// writeFailures counts persistence failures without ever blocking the
	// response that already carries the computed Decision.
	writeFailures prometheus.Counter
}

// New creates an Auditor. writeFailures may be nil in tests.
func New(backend Backend, logger *slog.Logger, writeFailures prometheus.Counter) *Auditor {
	return &Auditor{backend: backend, logger: logger, writeFailures: writeFailures}
}

// Record writes the audit event and decision. On failure it logs
// server-side, increments the failure counter, and returns an empty
// decision ID along with a non-nil error purely for caller-side logging —
// callers MUST NOT surface this error to the HTTP response.
func (a *Auditor) Record(ctx context.Context, ev store.AuditEvent, d store.Decision) (decisionID string, persistErr error) {
	// audit_level:detailed is resolved by the Pipeline before it builds
	// ActionSnapshot — this package only ever sees the snapshot it is given.
	id, err := a.backend.SaveAuditEvent(ctx, ev, d)
	if err != nil {
		a.logger.Error("audit write failed",
			"error", err,
			"decision_verdict", d.Verdict,
			"decision_reason_code", d.ReasonCode,
			"intent_id", ev.IntentID,
		)
		if a.writeFailures != nil {
			a.writeFailures.Inc()
		}
		return "", err
	}
	return id, nil
}

// RedactedSnapshot builds the action snapshot the Auditor should capture,
// honoring the intent's audit_level constraint: only
// "detailed" keeps full params, everything else gets a redacted view that
// keeps the keys of params and nested objects, replaces each array with its
// length, and replaces every other value with "[redacted]".
func RedactedSnapshot(action store.Action, detailed bool) map[string]any {
	snapshot := map[string]any{"tool": action.Tool, "op": action.Op, "computed_risk": action.ComputedRisk}
	if detailed {
		snapshot["params"] = action.Params
		return snapshot
	}
	snapshot["params"] = redactValues(action.Params)
	return snapshot
}

func redactValues(params map[string]any) map[string]any {
	redacted := make(map[string]any, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case map[string]any:
			redacted[k] = redactValues(val)
		case []any:
			redacted[k] = len(val)
		default:
			redacted[k] = "[redacted]"
		}
	}
	return redacted
}
