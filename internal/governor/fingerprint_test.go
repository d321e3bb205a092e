package governor

import (
	"testing"

	"github.com/edonhq/gateway/internal/store"
)

func TestFingerprintDeterministic(t *testing.T) {
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": []any{"a@example.com"}, "subject": "hi"}}

	got1 := Fingerprint(action, "int-1")
	got2 := Fingerprint(action, "int-1")
	if got1 != got2 {
		t.Errorf("Fingerprint() is not deterministic: %q != %q", got1, got2)
	}
}

func TestFingerprintIgnoresMapKeyOrder(t *testing.T) {
	a := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": "x@example.com", "subject": "hi", "body": "hello"}}
	b := store.Action{Tool: "email", Op: "send", Params: map[string]any{"body": "hello", "subject": "hi", "to": "x@example.com"}}

	if Fingerprint(a, "int-1") != Fingerprint(b, "int-1") {
		t.Error("Fingerprint() should not depend on map key iteration order")
	}
}

func TestFingerprintDiffersOnIntentID(t *testing.T) {
	action := store.Action{Tool: "email", Op: "send", Params: map[string]any{"to": "x@example.com"}}

	f1 := Fingerprint(action, "int-1")
	f2 := Fingerprint(action, "int-2")
	if f1 == f2 {
		t.Error("Fingerprint() should differ when intent_id differs")
	}
}

func TestFingerprintDiffersOnNestedParams(t *testing.T) {
	a := store.Action{Tool: "filesystem", Op: "write", Params: map[string]any{"meta": map[string]any{"a": 1, "b": 2}}}
	b := store.Action{Tool: "filesystem", Op: "write", Params: map[string]any{"meta": map[string]any{"a": 1, "b": 3}}}

	if Fingerprint(a, "int-1") == Fingerprint(b, "int-1") {
		t.Error("Fingerprint() should differ when nested params differ")
	}
}
