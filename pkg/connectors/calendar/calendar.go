// Package calendar implements the CalendarConnector:
// create_event against a downstream calendar API, authenticated with an
// OAuth2 client-credentials token sourced from a Vault credential of
// credential_type=oauth2. This is the system's one machine-to-machine
// OAuth2 use, distinct from any OIDC authorization-code flow that signs
// human users in, but it grounds this package's use of the
// golang.org/x/oauth2 module already in the stack.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/edonhq/gateway/pkg/connectors"
)

// Connector is the CalendarConnector.
type Connector struct {
	apiBaseURL string
}

// New creates a CalendarConnector pointed at apiBaseURL. Each call to
// Execute builds its own OAuth2 client from the credential it is given,
// the same per-call credential resolution pkg/connectors/remotebot uses
// for its bearer secret.
func New(apiBaseURL string) *Connector {
	return &Connector{apiBaseURL: apiBaseURL}
}

// ConfigFromCredential builds a clientcredentials.Config from a Vault
// credential_type=oauth2 payload: {client_id, client_secret, token_url,
// scopes?}.
func ConfigFromCredential(payload map[string]any) (*clientcredentials.Config, error) {
	clientID, _ := payload["client_id"].(string)
	clientSecret, _ := payload["client_secret"].(string)
	tokenURL, _ := payload["token_url"].(string)
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("calendar: oauth2 credential missing client_id/client_secret/token_url")
	}

	var scopes []string
	if raw, ok := payload["scopes"].([]any); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}

	return &clientcredentials.Config{
		ClientID: clientID,
		ClientSecret: clientSecret,
		TokenURL: tokenURL,
		Scopes: scopes,
	}, nil
}

type createEventRequest struct {
	Title string `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime time.Time `json:"end_time"`
	Attendees []string `json:"attendees,omitempty"`
}

type createEventResponse struct {
	EventID string `json:"event_id"`
}

// Execute implements connectors.Connector for op=create_event.
func (c *Connector) Execute(ctx context.Context, op string, params map[string]any, cred *connectors.CredentialHandle) (connectors.Result, error) {
	if op != "create_event" {
		return connectors.Result{}, fmt.Errorf("calendar: unsupported op %q", op)
	}
	if cred == nil {
		return connectors.Result{}, fmt.Errorf("calendar: no credential configured")
	}
	oauthCfg, err := ConfigFromCredential(cred.Payload)
	if err != nil {
		return connectors.Result{}, err
	}
	httpClient := oauthCfg.Client(ctx)

	title, _ := params["title"].(string)
	startTime, _ := params["start_time"].(string)
	endTime, _ := params["end_time"].(string)

	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return connectors.Result{}, fmt.Errorf("calendar: parsing start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endTime)
	if err != nil {
		return connectors.Result{}, fmt.Errorf("calendar: parsing end_time: %w", err)
	}

	var attendees []string
	if raw, ok := params["attendees"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				attendees = append(attendees, s)
			}
		}
	}

	body, err := json.Marshal(createEventRequest{Title: title, StartTime: start, EndTime: end, Attendees: attendees})
	if err != nil {
		return connectors.Result{}, fmt.Errorf("calendar: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return connectors.Result{}, fmt.Errorf("calendar: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return connectors.Result{}, fmt.Errorf("calendar: calling downstream API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return connectors.Result{}, fmt.Errorf("calendar: downstream returned HTTP %d", resp.StatusCode)
	}

	var decoded createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return connectors.Result{}, fmt.Errorf("calendar: decoding response: %w", err)
	}

	return connectors.Result{
		OK: true,
		Value: map[string]any{"event_id": decoded.EventID},
		Observation: &connectors.Observation{
			Verified: true,
			MessageID: decoded.EventID,
		},
	}, nil
}

// Observe has nothing further to verify beyond what Execute attached.
func (c *Connector) Observe(ctx context.Context, op string, result connectors.Result) (*connectors.Observation, error) {
	return result.Observation, nil
}
