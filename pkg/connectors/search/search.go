// Package search implements the read-only SearchConnector:
// always computed_risk=low, never escalates, since it can only read.
// Requests append limit and q query params to the base URL and use
// http.NewRequestWithContext, a status-code check and a JSON decode.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/edonhq/gateway/pkg/connectors"
)

// Result is one search hit.
type Result struct {
	Title string `json:"title"`
	URL string `json:"url"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []Result `json:"items"`
	Total int `json:"total"`
}

// Connector is the SearchConnector.
type Connector struct {
	httpClient *http.Client
	apiBaseURL string
}

// New creates a SearchConnector with a 10-second timeout.
func New(apiBaseURL string) *Connector {
	return &Connector{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBaseURL: apiBaseURL,
	}
}

// Execute implements connectors.Connector for op=query.
func (c *Connector) Execute(ctx context.Context, op string, params map[string]any, cred *connectors.CredentialHandle) (connectors.Result, error) {
	if op != "query" {
		return connectors.Result{}, fmt.Errorf("search: unsupported op %q", op)
	}

	q, _ := params["q"].(string)
	limit := 10
	if raw, ok := params["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	reqURL := fmt.Sprintf("%s/search?limit=%d&q=%s", c.apiBaseURL, limit, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return connectors.Result{}, fmt.Errorf("search: building request: %w", err)
	}
	if cred != nil {
		if apiKey, ok := cred.Payload["api_key"].(string); ok {
			req.Header.Set("X-API-Key", apiKey)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectors.Result{}, fmt.Errorf("search: calling downstream search API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return connectors.Result{}, fmt.Errorf("search: downstream returned HTTP %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return connectors.Result{}, fmt.Errorf("search: decoding response: %w", err)
	}

	return connectors.Result{OK: true, Value: decoded.Items}, nil
}

// Observe is a no-op: a read has nothing to verify post-execution.
func (c *Connector) Observe(ctx context.Context, op string, result connectors.Result) (*connectors.Observation, error) {
	return nil, nil
}
