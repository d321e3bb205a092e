// Package authn implements the Authenticator contract:
// token extraction, hash lookup, optional token/agent binding, and the
// tenant active-status gate. Resolved identity travels downstream as a
// Principal attached to the request context via NewContext/FromContext.
package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/store"
)

// Backend is the subset of *store.Store the Authenticator depends on.
type Backend interface {
	GetTenant(ctx context.Context, tenantID uuid.UUID) (store.Tenant, error)
	LookupAPIKey(ctx context.Context, tokenHash string) (uuid.UUID, error)
	LookupToken(ctx context.Context, tokenHash string) (agentID string, lastUsedAt time.Time, found bool, err error)
	BindToken(ctx context.Context, tokenHash, agentID string) error
	TouchToken(ctx context.Context, tokenHash string) error
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	TokenHash string
	TenantID *uuid.UUID
	Tenant *store.Tenant
	AgentID string
	// MatchedConfiguredToken is true when the token matched the operator's
	// static API_TOKEN rather than a tenant-scoped key.
	MatchedConfiguredToken bool
}

type contextKey struct{}

// NewContext attaches p to ctx.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext retrieves the Principal attached by the Authenticator
// middleware, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}

// HashToken returns the SHA-256 hex digest of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Authenticator resolves a Principal from an incoming request.
type Authenticator struct {
	backend Backend
	configuredToken string
	tokenBindingOn bool
	demoMode bool
}

// Config controls optional Authenticator behavior.
type Config struct {
	APIToken string
	TokenBindingEnabled bool
	DemoMode bool
}

// New creates an Authenticator.
func New(backend Backend, cfg Config) *Authenticator {
	return &Authenticator{
		backend: backend,
		configuredToken: cfg.APIToken,
		tokenBindingOn: cfg.TokenBindingEnabled,
		demoMode: cfg.DemoMode,
	}
}

// publicPaths lists routes that never require authentication.
var publicPaths = map[string]bool{
	"/health": true,
	"/version": true,
	"/docs": true,
	"/openapi.json": true,
	"/redoc": true,
	"/metrics/prometheus": true,
}

// IsPublic reports whether path requires no authentication.
func IsPublic(path string) bool { return publicPaths[path] }

// Authenticate implements Steps 1-4 for a single request. It
// does not itself decide whether the matched route is public — callers
// (the Pipeline middleware) should skip calling this for IsPublic paths.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	raw := extractToken(r)
	if raw == "" {
		return nil, apperror.New(apperror.KindAuthMissing, "no authentication token provided")
	}

	hash := HashToken(raw)
	principal := &Principal{TokenHash: hash}

	switch {
	case a.configuredToken != "" && raw == a.configuredToken:
		principal.MatchedConfiguredToken = true
	default:
		tenantID, err := a.backend.LookupAPIKey(ctx, hash)
		if err != nil {
			return nil, apperror.New(apperror.KindAuthInvalid, "invalid authentication token")
		}
		principal.TenantID = &tenantID

		tenant, err := a.backend.GetTenant(ctx, tenantID)
		if err != nil {
			return nil, apperror.New(apperror.KindAuthInvalid, "invalid authentication token")
		}
		principal.Tenant = &tenant
	}

	agentID := r.Header.Get("X-Agent-ID")
	if a.tokenBindingOn {
		if err := a.enforceBinding(ctx, hash, agentID); err != nil {
			return nil, err
		}
	}
	principal.AgentID = agentID

	if principal.Tenant != nil && !principal.Tenant.Active() && !a.demoMode && requestHasSideEffects(r) {
		return nil, apperror.New(apperror.KindForbidden, "tenant is not active")
	}

	return principal, nil
}

// enforceBinding implements Step 3.
func (a *Authenticator) enforceBinding(ctx context.Context, tokenHash, agentID string) error {
	boundAgentID, _, found, err := a.backend.LookupToken(ctx, tokenHash)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "checking token binding", err)
	}

	if !found {
		if agentID == "" {
			// No binding and no agent asserted yet; nothing to enforce until
			// the caller starts identifying itself.
			return nil
		}
		return a.backend.BindToken(ctx, tokenHash, agentID)
	}

	if agentID != "" && agentID != boundAgentID {
		return apperror.New(apperror.KindAuthInvalid, "token is already bound to a different agent")
	}

	return a.backend.TouchToken(ctx, tokenHash)
}

func extractToken(r *http.Request) string {
	if t := r.Header.Get("X-EDON-TOKEN"); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// requestHasSideEffects is a conservative approximation used only to gate
// the inactive-tenant check: GET/HEAD/OPTIONS never execute side effects.
func requestHasSideEffects(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// Middleware returns HTTP middleware that authenticates non-public routes
// and attaches the resulting Principal to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := a.Authenticate(r.Context(), r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), principal)))
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	he, ok := apperror.As(err)
	if !ok {
		he = apperror.New(apperror.KindInternal, "authentication failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.Status())
	_, _ = w.Write([]byte(`{"detail":"` + he.Message + `"}`))
}
