package httpserver

import (
	"testing"

	"github.com/google/uuid"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/store"
	"github.com/edonhq/gateway/internal/vault"
)

func TestIsReadOp(t *testing.T) {
	tests := []struct {
		op   string
		want bool
	}{
		{"read", true},
		{"read_file", true},
		{"query", true},
		{"get", true},
		{"list", true},
		{"write", false},
		{"delete", false},
		{"invoke", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			if got := isReadOp(tt.op); got != tt.want {
				t.Errorf("isReadOp(%q) = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(apperror.NotFound("no such intent")) {
		t.Error("isNotFound() should be true for a KindNotFound error")
	}
	if isNotFound(apperror.New(apperror.KindForbidden, "nope")) {
		t.Error("isNotFound() should be false for a non-KindNotFound error")
	}
	if isNotFound(nil) {
		t.Error("isNotFound(nil) should be false")
	}
}

func TestSyntheticReadIntent(t *testing.T) {
	tenantID := uuid.New()
	principal := &authn.Principal{TenantID: &tenantID}
	action := store.Action{Tool: "email", Op: "read"}

	intent := syntheticReadIntent(principal, action)

	if intent.ApprovedByUser {
		t.Error("synthetic intent must never be pre-approved")
	}
	if intent.RiskLevel != store.RiskLow {
		t.Errorf("RiskLevel = %q, want low", intent.RiskLevel)
	}
	ops, ok := intent.Scope["email"]
	if !ok || len(ops) != 1 || ops[0] != "read" {
		t.Errorf("Scope = %v, want {email: [read]}", intent.Scope)
	}
	if intent.TenantID != principal.TenantID {
		t.Error("synthetic intent should carry the caller's tenant ID")
	}
}

func TestToConnectorCredential(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		if got := toConnectorCredential(nil); got != nil {
			t.Errorf("toConnectorCredential(nil) = %v, want nil", got)
		}
	})

	t.Run("adapts fields, drops ToolName", func(t *testing.T) {
		h := &vault.CredentialHandle{
			CredentialID: "cred-1",
			ToolName:     "email",
			Type:         "oauth",
			Payload:      map[string]any{"token": "xyz"},
		}
		got := toConnectorCredential(h)
		if got.CredentialID != h.CredentialID || got.Type != h.Type {
			t.Errorf("toConnectorCredential() = %+v, want CredentialID/Type copied from %+v", got, h)
		}
		if got.Payload["token"] != "xyz" {
			t.Errorf("Payload not copied: %+v", got.Payload)
		}
	})
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"10", 10},
		{"0", 0},
		{"-5", 0},
		{"not-a-number", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLimit(tt.in); got != tt.want {
				t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
