package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edonhq/gateway/pkg/connectors"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func TestConfigFromCredential_BuildsConfig(t *testing.T) {
	cfg, err := ConfigFromCredential(map[string]any{
		"client_id":     "cid",
		"client_secret": "csecret",
		"token_url":     "https://auth.example.com/token",
		"scopes":        []any{"calendar.write"},
	})
	if err != nil {
		t.Fatalf("ConfigFromCredential() error = %v", err)
	}
	if cfg.ClientID != "cid" || len(cfg.Scopes) != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestConfigFromCredential_RejectsIncompletePayload(t *testing.T) {
	_, err := ConfigFromCredential(map[string]any{"client_id": "cid"})
	if err == nil {
		t.Fatal("ConfigFromCredential() should reject a payload missing required fields")
	}
}

func TestExecute_CreateEventAttachesAuthHeaderAndObservation(t *testing.T) {
	tok := tokenServer(t)
	defer tok.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createEventResponse{EventID: "evt-1"})
	}))
	defer api.Close()

	cred := &connectors.CredentialHandle{Payload: map[string]any{"client_id": "cid", "client_secret": "csecret", "token_url": tok.URL}}
	c := New(api.URL)

	result, err := c.Execute(context.Background(), "create_event", map[string]any{
		"title":      "Sync",
		"start_time": "2026-07-29T10:00:00Z",
		"end_time":   "2026-07-29T10:30:00Z",
		"attendees":  []any{"a@example.com"},
	}, cred)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization header = %q, want Bearer tok-123", gotAuth)
	}
	if result.Observation == nil || result.Observation.MessageID != "evt-1" {
		t.Errorf("observation = %+v, want event_id evt-1", result.Observation)
	}
}

func TestExecute_RejectsUnsupportedOp(t *testing.T) {
	c := New("https://calendar.example.com")

	if _, err := c.Execute(context.Background(), "delete_event", nil, nil); err == nil {
		t.Fatal("Execute() should reject an unsupported op")
	}
}

func TestExecute_RejectsInvalidStartTime(t *testing.T) {
	cred := &connectors.CredentialHandle{Payload: map[string]any{"client_id": "cid", "client_secret": "s", "token_url": "https://auth.example.com/token"}}
	c := New("https://calendar.example.com")

	_, err := c.Execute(context.Background(), "create_event", map[string]any{"title": "x", "start_time": "not-a-time", "end_time": "2026-07-29T10:30:00Z"}, cred)
	if err == nil {
		t.Fatal("Execute() should reject a malformed start_time")
	}
}
