// Package slacknotify posts ESCALATE/PAUSE decision notifications to an
// ops channel: a noop when no bot token is configured, otherwise
// goslack.New(token) and PostMessageContext with MsgOptionText.
package slacknotify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts decision alerts to Slack.
type Notifier struct {
	client *goslack.Client
	channel string
	logger *slog.Logger
}

// New creates a Notifier. If botToken is empty, the notifier is a noop
// (logging only), matching the IsEnabled guard used elsewhere for
// optional integrations.
func New(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// IsEnabled reports whether the notifier has a usable client and channel.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// Alert is the minimal decision context surfaced in a Slack notification.
type Alert struct {
	DecisionID string
	Verdict string
	ReasonCode string
	TenantID string
	AgentID string
	Explanation string
}

// PostDecisionAlert sends an ESCALATE/PAUSE notification to the
// configured ops channel. Returns the channel ID and message timestamp
// for tracking, or ("", "", nil) if the notifier is disabled.
func (n *Notifier) PostDecisionAlert(ctx context.Context, alert Alert) (channelID, ts string, err error) {
	if !n.IsEnabled() {
		n.logger.Debug("slack notifier disabled, skipping decision alert",
			"decision_id", alert.DecisionID,
			"verdict", alert.Verdict,
		)
		return "", "", nil
	}

	text := fmt.Sprintf(":warning: %s — %s\ntenant=%s agent=%s\n%s",
		alert.Verdict, alert.ReasonCode, alert.TenantID, alert.AgentID, alert.Explanation)

	channelID, ts, err = n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		return "", "", fmt.Errorf("posting decision alert to slack: %w", err)
	}

	n.logger.Info("posted decision alert to slack",
		"decision_id", alert.DecisionID,
		"channel", channelID,
		"ts", ts,
	)
	return channelID, ts, nil
}
