package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edonhq/gateway/internal/store"
)

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AuditFilters{Limit: parseLimit(q.Get("limit"))}
	if v := q.Get("agent_id"); v != "" {
		f.AgentID = &v
	}
	if v := q.Get("verdict"); v != "" {
		f.Verdict = &v
	}
	if v := q.Get("intent_id"); v != "" {
		f.IntentID = &v
	}

	events, err := s.store.QueryAuditEvents(r.Context(), f)
	if err != nil {
		WriteError(w, s.logger, "querying audit events", err)
		return
	}

	Respond(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleDecisionsQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.DecisionFilters{Limit: parseLimit(q.Get("limit"))}
	if v := q.Get("verdict"); v != "" {
		f.Verdict = &v
	}

	decisions, err := s.store.QueryDecisions(r.Context(), f)
	if err != nil {
		WriteError(w, s.logger, "querying decisions", err)
		return
	}

	Respond(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (s *Server) handleDecisionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	decision, err := s.store.GetDecision(r.Context(), id)
	if err != nil {
		WriteError(w, s.logger, "getting decision", err)
		return
	}

	Respond(w, http.StatusOK, decision)
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
