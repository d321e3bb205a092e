package slacknotify

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_EmptyTokenIsDisabled(t *testing.T) {
	n := New("", "#ops", testLogger())
	if n.IsEnabled() {
		t.Error("IsEnabled() should be false with no bot token")
	}
}

func TestNew_EmptyChannelIsDisabled(t *testing.T) {
	n := New("xoxb-token", "", testLogger())
	if n.IsEnabled() {
		t.Error("IsEnabled() should be false with no channel")
	}
}

func TestPostDecisionAlert_NoopWhenDisabled(t *testing.T) {
	n := New("", "", testLogger())

	channelID, ts, err := n.PostDecisionAlert(context.Background(), Alert{DecisionID: "dec-1", Verdict: "ESCALATE"})
	if err != nil {
		t.Fatalf("PostDecisionAlert() error = %v", err)
	}
	if channelID != "" || ts != "" {
		t.Errorf("PostDecisionAlert() = %q, %q, want empty when disabled", channelID, ts)
	}
}
