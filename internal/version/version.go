// Package version holds build-time identifiers injected via -ldflags
// (e.g. -X github.com/edonhq/gateway/internal/version.Version=1.4.0).
// Both vars default to "dev" so a plain `go build` still produces a
// usable binary.
package version

var (
	Version = "dev"
	Commit  = "unknown"
)
