// Package filesystem implements the sandboxed FilesystemConnector: read_file/write_file/delete_file resolved against a sandbox
// root, any path escaping that root rejected with apperror.ValueError.
// The containment check serves the same purpose as
// internal/governor.isFilesystemEscape, but tests the absolute path for
// the sandbox-root prefix instead of using filepath.Rel, inside the
// connector that actually performs the I/O.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/pkg/connectors"
)

// Connector is the sandboxed FilesystemConnector.
type Connector struct {
	sandboxRoot string
}

// New creates a FilesystemConnector rooted at sandboxRoot.
func New(sandboxRoot string) *Connector {
	return &Connector{sandboxRoot: sandboxRoot}
}

// Execute implements connectors.Connector for op ∈
// {read_file, write_file, delete_file}.
func (c *Connector) Execute(ctx context.Context, op string, params map[string]any, cred *connectors.CredentialHandle) (connectors.Result, error) {
	relPath, _ := params["path"].(string)
	abs, err := c.resolve(relPath)
	if err != nil {
		return connectors.Result{}, err
	}

	switch op {
	case "read_file":
		data, err := os.ReadFile(abs)
		if err != nil {
			return connectors.Result{}, fmt.Errorf("filesystem: reading %q: %w", relPath, err)
		}
		return connectors.Result{OK: true, Value: string(data)}, nil

	case "write_file":
		content, _ := params["content"].(string)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return connectors.Result{}, fmt.Errorf("filesystem: preparing directory for %q: %w", relPath, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return connectors.Result{}, fmt.Errorf("filesystem: writing %q: %w", relPath, err)
		}
		return connectors.Result{
			OK: true,
			Value: map[string]any{"path": relPath, "bytes_written": len(content)},
			Observation: &connectors.Observation{
				Verified: true,
				Detail: map[string]any{"path": relPath},
			},
		}, nil

	case "delete_file":
		if err := os.Remove(abs); err != nil {
			return connectors.Result{}, fmt.Errorf("filesystem: deleting %q: %w", relPath, err)
		}
		return connectors.Result{
			OK: true,
			Value: map[string]any{"path": relPath, "deleted": true},
			Observation: &connectors.Observation{Verified: true, Detail: map[string]any{"path": relPath}},
		}, nil

	default:
		return connectors.Result{}, fmt.Errorf("filesystem: unsupported op %q", op)
	}
}

// Observe has nothing further to verify beyond what Execute already
// attached.
func (c *Connector) Observe(ctx context.Context, op string, result connectors.Result) (*connectors.Observation, error) {
	return result.Observation, nil
}

// resolve joins relPath against the sandbox root and rejects any result
// that escapes it, returning apperror.ValueError.
func (c *Connector) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", apperror.ValueError("path is required")
	}
	if filepath.IsAbs(relPath) {
		return "", apperror.ValueError(fmt.Sprintf("path %q must be relative to the filesystem sandbox", relPath))
	}

	root, err := filepath.Abs(c.sandboxRoot)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "resolving sandbox root", err)
	}

	joined := filepath.Join(root, relPath)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "resolving path", err)
	}

	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", apperror.ValueError(fmt.Sprintf("path %q escapes the filesystem sandbox", relPath))
	}

	return abs, nil
}
