// Package connectors defines the Connector contract and a
// registry keyed by tool name. Each connector satisfies capability
// {Execute, Observe} — dynamic dispatch over a map, the same
// "named preset row materializes one concrete thing" shape the registry
// pattern in pkg/policypacks also follows.
package connectors

import "context"

// CredentialHandle is the narrow, in-memory view of a decrypted
// credential a Connector receives per call. It never outlives the call
// that requested it.
type CredentialHandle struct {
	CredentialID string
	Type string
	Payload map[string]any
}

// Observation is a read-only post-execution verification block attached to a successful Execute result and surfaced verbatim in
// the response's execution block.
type Observation struct {
	Verified bool `json:"verified"`
	MessageID string `json:"message_id,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Result is what a Connector's Execute call returns.
type Result struct {
	OK bool
	Value any
	Error string
	Observation *Observation
}

// Connector is anything that can carry out a tool operation against a
// downstream system using a Vault-issued credential.
type Connector interface {
	// Execute performs op with params, using cred if the connector needs
	// one (cred is nil for connectors that need no credential, e.g. a
	// sandboxed filesystem connector with no external auth).
	Execute(ctx context.Context, op string, params map[string]any, cred *CredentialHandle) (Result, error)
	// Observe runs after a successful Execute and may return additional
	// read-only verification detail. Connectors with nothing further to
	// verify return either nil, nil or the observation Execute already
	// attached; the Pipeline falls back to Result.Observation on nil.
	Observe(ctx context.Context, op string, result Result) (*Observation, error)
}

// Registry maps tool name to the Connector that serves it.
type Registry struct {
	byTool map[string]Connector
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byTool: make(map[string]Connector)}
}

// Register associates tool with a Connector. A later call for the same
// tool replaces the earlier one.
func (r *Registry) Register(tool string, c Connector) {
	r.byTool[tool] = c
}

// Lookup returns the Connector registered for tool, if any.
func (r *Registry) Lookup(tool string) (Connector, bool) {
	c, ok := r.byTool[tool]
	return c, ok
}

// Tools lists every registered tool name, for the integrations status view.
func (r *Registry) Tools() []string {
	tools := make([]string, 0, len(r.byTool))
	for tool := range r.byTool {
		tools = append(tools, tool)
	}
	return tools
}
