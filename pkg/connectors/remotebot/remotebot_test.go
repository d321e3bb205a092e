package remotebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edonhq/gateway/pkg/connectors"
)

func TestExecute_ForwardsActionAndAuthHeader(t *testing.T) {
	var gotAuth string
	var gotBody invokeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(invokeResponse{OK: true, Result: "done"})
	}))
	defer server.Close()

	c := New(server.URL)
	cred := &connectors.CredentialHandle{Payload: map[string]any{"secret": "s3cr3t"}}
	params := map[string]any{"action": "summarize", "args": map[string]any{"text": "hello"}}

	result, err := c.Execute(context.Background(), "invoke", params, cred)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.OK {
		t.Error("Execute() result should be OK")
	}
	if gotAuth != "Bearer s3cr3t" {
		t.Errorf("Authorization header = %q, want Bearer s3cr3t", gotAuth)
	}
	if gotBody.Action != "summarize" {
		t.Errorf("forwarded action = %q, want summarize", gotBody.Action)
	}
}

func TestExecute_PropagatesObservation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(invokeResponse{OK: true, Observation: map[string]any{"confirmed": true}})
	}))
	defer server.Close()

	c := New(server.URL)
	cred := &connectors.CredentialHandle{Payload: map[string]any{"secret": "s"}}

	result, err := c.Execute(context.Background(), "invoke", map[string]any{"action": "x"}, cred)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Observation == nil || !result.Observation.Verified {
		t.Error("Execute() should attach a verified observation from the downstream response")
	}
}

func TestExecute_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL)
	cred := &connectors.CredentialHandle{Payload: map[string]any{"secret": "s"}}

	if _, err := c.Execute(context.Background(), "invoke", map[string]any{"action": "x"}, cred); err == nil {
		t.Fatal("Execute() should error on a non-200 downstream response")
	}
}

func TestExecute_RejectsUnsupportedOp(t *testing.T) {
	c := New("http://example.invalid")
	cred := &connectors.CredentialHandle{Payload: map[string]any{"secret": "s"}}

	if _, err := c.Execute(context.Background(), "delete", nil, cred); err == nil {
		t.Fatal("Execute() should reject an unsupported op")
	}
}

func TestExecute_RequiresCredential(t *testing.T) {
	c := New("http://example.invalid")

	if _, err := c.Execute(context.Background(), "invoke", map[string]any{"action": "x"}, nil); err == nil {
		t.Fatal("Execute() should error when no credential is supplied")
	}
}

func TestNormalizeCredential_CurrentShape(t *testing.T) {
	got := NormalizeCredential(map[string]any{"base_url": "http://bot.internal", "auth_mode": "bearer", "secret": "s1"})
	if got["base_url"] != "http://bot.internal" || got["secret"] != "s1" {
		t.Errorf("NormalizeCredential() = %v", got)
	}
}

func TestNormalizeCredential_LegacyShape(t *testing.T) {
	got := NormalizeCredential(map[string]any{"gateway_url": "http://legacy.internal", "gateway_token": "t1"})
	if got["base_url"] != "http://legacy.internal" || got["secret"] != "t1" || got["auth_mode"] != "bearer" {
		t.Errorf("NormalizeCredential() = %v", got)
	}
}
