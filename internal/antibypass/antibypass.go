// Package antibypass implements the startup-time safety gates:
// NETWORK_GATING (refuse to start if the downstream bot gateway
// resolves somewhere the operator hasn't explicitly accepted) and the
// production config checks (default token, wildcard CORS,
// and the TOKEN_HARDENING/CREDENTIALS_STRICT pairing).
package antibypass

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Classification is the reachability class of a resolved downstream host,
// the same vocabulary a netip.Addr classifier works with, applied here
// to a configured hostname instead of
// an inbound request's IP.
type Classification string

const (
	ClassLoopback Classification = "loopback"
	ClassPrivate Classification = "private"
	ClassPublic Classification = "public"
	ClassUnknown Classification = "unknown"
)

// Resolver abstracts net.LookupHost so tests can supply fixed results
// without touching the real resolver.
type Resolver func(ctx context.Context, host string) ([]string, error)

// DefaultResolver wraps net.DefaultResolver.LookupHost.
func DefaultResolver(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

// ClassifyHost resolves host and returns the least-trusted classification
// among its addresses, failing closed to ClassUnknown when resolution
// fails or yields no usable address.
func ClassifyHost(ctx context.Context, host string, resolve Resolver) Classification {
	if addr, err := netip.ParseAddr(host); err == nil {
		return classifyAddr(addr)
	}

	addrs, err := resolve(ctx, host)
	if err != nil || len(addrs) == 0 {
		return ClassUnknown
	}

	worst := ClassLoopback
	for _, a := range addrs {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			worst = weakest(worst, ClassUnknown)
			continue
		}
		worst = weakest(worst, classifyAddr(addr))
	}
	return worst
}

func classifyAddr(addr netip.Addr) Classification {
	switch {
	case addr.IsLoopback():
		return ClassLoopback
	case addr.IsPrivate(), addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return ClassPrivate
	default:
		return ClassPublic
	}
}

// rank orders classifications from most to least trusted; weakest returns
// whichever of two classifications is less trusted.
var rank = map[Classification]int{
	ClassLoopback: 0,
	ClassPrivate: 1,
	ClassPublic: 2,
	ClassUnknown: 3,
}

func weakest(a, b Classification) Classification {
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// CheckNetworkGating implements NETWORK_GATING: when enabled,
// a downstream URL classified public or unknown is a fatal startup error.
func CheckNetworkGating(ctx context.Context, enabled bool, downstreamURL string, resolve Resolver) error {
	if !enabled || downstreamURL == "" {
		return nil
	}

	host, err := hostOf(downstreamURL)
	if err != nil {
		return fmt.Errorf("NETWORK_GATING: parsing downstream URL %q: %w", downstreamURL, err)
	}

	class := ClassifyHost(ctx, host, resolve)
	if class == ClassPublic || class == ClassUnknown {
		return fmt.Errorf("NETWORK_GATING: downstream %q resolves to a %s address; isolate the downstream bot gateway on a loopback or private network, or disable NETWORK_GATING for local development", downstreamURL, class)
	}
	return nil
}

func hostOf(rawURL string) (string, error) {
	trimmed := rawURL
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		return host, nil
	}
	if trimmed == "" {
		return "", fmt.Errorf("empty host")
	}
	return trimmed, nil
}

// ProductionConfig is the subset of config.Config the startup checks
// consult.
type ProductionConfig struct {
	IsProduction bool
	APIToken string
	DefaultAPIToken string
	CORSAllowedOrigins []string
	TokenHardeningOn bool
	CredentialsStrictOn bool
}

// CheckProductionConfig refuses to start when production is detected and
// any of the three conditions holds: the API token still equals
// the documented default, CORS allows every origin, or TOKEN_HARDENING is
// on while CREDENTIALS_STRICT is off (hardening promises downstream
// tokens are never returned, a promise CREDENTIALS_STRICT's fallback path
// can silently break).
func CheckProductionConfig(cfg ProductionConfig) error {
	if !cfg.IsProduction {
		return nil
	}

	if cfg.DefaultAPIToken != "" && cfg.APIToken == cfg.DefaultAPIToken {
		return fmt.Errorf("refusing to start in production: API_TOKEN is still set to its default value")
	}

	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("refusing to start in production: CORS_ORIGINS allows all origins")
		}
	}

	if cfg.TokenHardeningOn && !cfg.CredentialsStrictOn {
		return fmt.Errorf("refusing to start in production: TOKEN_HARDENING is on but CREDENTIALS_STRICT is off")
	}

	return nil
}
