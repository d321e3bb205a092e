package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edonhq/gateway/pkg/connectors"
)

func TestExecute_ForwardsQueryAndLimit(t *testing.T) {
	var gotQuery, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		_ = json.NewEncoder(w).Encode(searchResponse{Items: []Result{{Title: "doc"}}, Total: 1})
	}))
	defer server.Close()

	c := New(server.URL)
	result, err := c.Execute(context.Background(), "query", map[string]any{"q": "outage", "limit": float64(5)}, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotQuery != "outage" || gotLimit != "5" {
		t.Errorf("query=%q limit=%q, want outage/5", gotQuery, gotLimit)
	}
	items := result.Value.([]Result)
	if len(items) != 1 {
		t.Errorf("items = %v, want 1", items)
	}
}

func TestExecute_SendsAPIKeyWhenCredentialProvided(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	c := New(server.URL)
	cred := &connectors.CredentialHandle{Payload: map[string]any{"api_key": "key-1"}}
	if _, err := c.Execute(context.Background(), "query", map[string]any{"q": "x"}, cred); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotKey != "key-1" {
		t.Errorf("X-API-Key = %q, want key-1", gotKey)
	}
}

func TestExecute_RejectsUnsupportedOp(t *testing.T) {
	c := New("http://example.invalid")
	if _, err := c.Execute(context.Background(), "write", nil, nil); err == nil {
		t.Fatal("Execute() should reject an unsupported op")
	}
}

func TestObserve_AlwaysNil(t *testing.T) {
	c := New("http://example.invalid")
	obs, err := c.Observe(context.Background(), "query", connectors.Result{OK: true})
	if err != nil || obs != nil {
		t.Errorf("Observe() = %v, %v, want nil, nil", obs, err)
	}
}
