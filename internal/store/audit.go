package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edonhq/gateway/internal/apperror"
)

// SaveAuditEvent writes exactly one AuditEvent and one Decision in a single
// transaction: failure rolls back both.
func (s *Store) SaveAuditEvent(ctx context.Context, ev AuditEvent, d Decision) (string, error) {
	if d.DecisionID == "" {
		d.DecisionID = "dec-" + uuid.New().String()
	}
	if ev.EventID == "" {
		ev.EventID = "evt-" + uuid.New().String()
	}
	ev.DecisionID = d.DecisionID

	var safeAltJSON, escalationJSON []byte
	var err error
	if d.SafeAlternative != nil {
		safeAltJSON, err = json.Marshal(d.SafeAlternative)
		if err != nil {
			return "", fmt.Errorf("marshaling safe alternative: %w", err)
		}
	}
	if d.Escalation != nil {
		escalationJSON, err = json.Marshal(d.Escalation)
		if err != nil {
			return "", fmt.Errorf("marshaling escalation: %w", err)
		}
	}

	actionSnapshotJSON, err := json.Marshal(ev.ActionSnapshot)
	if err != nil {
		return "", fmt.Errorf("marshaling action snapshot: %w", err)
	}
	contextSnapshotJSON, err := json.Marshal(ev.ContextSnapshot)
	if err != nil {
		return "", fmt.Errorf("marshaling context snapshot: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning audit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
	INSERT INTO decisions (decision_id, action_fingerprint, verdict, reason_code, explanation, safe_alternative, escalation, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, d.DecisionID, d.ActionFingerprint, d.Verdict, d.ReasonCode, d.Explanation, safeAltJSON, escalationJSON)
	if err != nil {
		return "", fmt.Errorf("writing decision: %w", err)
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO audit_events (event_id, decision_id, tenant_id, agent_id, intent_id, verdict, action_snapshot, context_snapshot, timestamp, latency_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9)
	`, ev.EventID, ev.DecisionID, ev.TenantID, ev.AgentID, ev.IntentID, d.Verdict, actionSnapshotJSON, contextSnapshotJSON, ev.LatencyMS)
	if err != nil {
		return "", fmt.Errorf("writing audit event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing audit transaction: %w", err)
	}

	return d.DecisionID, nil
}

// QueryAuditEvents filters audit events; Limit is clamped to 1000.
func (s *Store) QueryAuditEvents(ctx context.Context, f AuditFilters) ([]AuditEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	query := `SELECT event_id, decision_id, tenant_id, agent_id, intent_id, verdict, action_snapshot, context_snapshot, timestamp, latency_ms
	FROM audit_events WHERE true`
	args := []any{}
	argN := 1

	if f.AgentID != nil {
		query += fmt.Sprintf(" AND agent_id = $%d", argN)
		args = append(args, *f.AgentID)
		argN++
	}
	if f.Verdict != nil {
		query += fmt.Sprintf(" AND verdict = $%d", argN)
		args = append(args, *f.Verdict)
		argN++
	}
	if f.IntentID != nil {
		query += fmt.Sprintf(" AND intent_id = $%d", argN)
		args = append(args, *f.IntentID)
		argN++
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var actionJSON, contextJSON []byte
		if err := rows.Scan(&ev.EventID, &ev.DecisionID, &ev.TenantID, &ev.AgentID, &ev.IntentID,
			&ev.Verdict, &actionJSON, &contextJSON, &ev.Timestamp, &ev.LatencyMS); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		_ = json.Unmarshal(actionJSON, &ev.ActionSnapshot)
		_ = json.Unmarshal(contextJSON, &ev.ContextSnapshot)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// QueryDecisions filters decisions.
func (s *Store) QueryDecisions(ctx context.Context, f DecisionFilters) ([]Decision, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	query := `SELECT decision_id, action_fingerprint, verdict, reason_code, explanation, safe_alternative, escalation, timestamp
	FROM decisions WHERE true`
	args := []any{}
	argN := 1
	if f.Verdict != nil {
		query += fmt.Sprintf(" AND verdict = $%d", argN)
		args = append(args, *f.Verdict)
		argN++
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDecision looks up a single decision by id.
func (s *Store) GetDecision(ctx context.Context, decisionID string) (Decision, error) {
	row := s.pool.QueryRow(ctx, `
	SELECT decision_id, action_fingerprint, verdict, reason_code, explanation, safe_alternative, escalation, timestamp
	FROM decisions WHERE decision_id = $1
	`, decisionID)

	var d Decision
	var safeAltJSON, escalationJSON []byte
	err := row.Scan(&d.DecisionID, &d.ActionFingerprint, &d.Verdict, &d.ReasonCode, &d.Explanation,
		&safeAltJSON, &escalationJSON, &d.Timestamp)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Decision{}, apperror.NotFound("decision not found")
		}
		return Decision{}, fmt.Errorf("getting decision: %w", err)
	}
	if len(safeAltJSON) > 0 {
		d.SafeAlternative = &SafeAlternative{}
		_ = json.Unmarshal(safeAltJSON, d.SafeAlternative)
	}
	if len(escalationJSON) > 0 {
		d.Escalation = &Escalation{}
		_ = json.Unmarshal(escalationJSON, d.Escalation)
	}
	return d, nil
}

// CountRecentDecisionsByFingerprint returns how many decisions for the
// given action_fingerprint were recorded within the last window. The Pipeline calls this before invoking the
// pure Governor, so the Governor itself performs no I/O.
func (s *Store) CountRecentDecisionsByFingerprint(ctx context.Context, fingerprint string, windowSeconds int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
	SELECT count(*) FROM decisions
	WHERE action_fingerprint = $1 AND timestamp >= now() - ($2 || ' seconds')::interval
	`, fingerprint, windowSeconds).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recent decisions: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDecisionRow(row scannable) (Decision, error) {
	var d Decision
	var safeAltJSON, escalationJSON []byte
	if err := row.Scan(&d.DecisionID, &d.ActionFingerprint, &d.Verdict, &d.ReasonCode, &d.Explanation,
		&safeAltJSON, &escalationJSON, &d.Timestamp); err != nil {
		return Decision{}, fmt.Errorf("scanning decision: %w", err)
	}
	if len(safeAltJSON) > 0 {
		d.SafeAlternative = &SafeAlternative{}
		_ = json.Unmarshal(safeAltJSON, d.SafeAlternative)
	}
	if len(escalationJSON) > 0 {
		d.Escalation = &Escalation{}
		_ = json.Unmarshal(escalationJSON, d.Escalation)
	}
	return d, nil
}
