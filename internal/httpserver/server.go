// Package httpserver wires the request pipeline: CORS →
// Authenticator → RateLimiter → Validator → handler, then mounts the
// per-endpoint handlers on the authoritative route table.
package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edonhq/gateway/internal/antibypass"
	"github.com/edonhq/gateway/internal/auditor"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/config"
	"github.com/edonhq/gateway/internal/ratelimit"
	"github.com/edonhq/gateway/internal/store"
	"github.com/edonhq/gateway/internal/vault"
	"github.com/edonhq/gateway/pkg/connectors"
	"github.com/edonhq/gateway/pkg/connectors/slacknotify"
)

// Server holds every dependency the Pipeline's handlers need.
type Server struct {
	Router *chi.Mux

	store *store.Store
	vault *vault.Vault
	auditor *auditor.Auditor
	rateLimiter *ratelimit.RateLimiter
	authenticator *authn.Authenticator
	connectors *connectors.Registry
	slack *slacknotify.Notifier

	cfg *config.Config
	logger *slog.Logger
	metrics *prometheus.Registry
	startedAt time.Time
}

// Deps bundles the constructor arguments for NewServer: already-built
// collaborators are passed in rather than constructed by NewServer itself.
type Deps struct {
	Store *store.Store
	Vault *vault.Vault
	Auditor *auditor.Auditor
	RateLimiter *ratelimit.RateLimiter
	Authenticator *authn.Authenticator
	Connectors *connectors.Registry
	Slack *slacknotify.Notifier
	Config *config.Config
	Logger *slog.Logger
	Metrics *prometheus.Registry
}

// NewServer builds the router, registers global middleware, and mounts
// every route from the authoritative endpoint table.
func NewServer(d Deps) *Server {
	s := &Server{
		Router: chi.NewRouter(),
		store: d.Store,
		vault: d.Vault,
		auditor: d.Auditor,
		rateLimiter: d.RateLimiter,
		authenticator: d.Authenticator,
		connectors: d.Connectors,
		slack: d.Slack,
		cfg: d.Config,
		logger: d.Logger,
		metrics: d.Metrics,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(s.logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-EDON-TOKEN", "X-Agent-ID", "X-Tenant-ID", "X-Intent-ID", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge: 300,
	}))

	s.Router.Use(s.authenticator.Middleware)
	s.Router.Use(s.rateLimitMiddleware)

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/version", s.handleVersion)
	s.Router.Handle("/metrics/prometheus", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	s.Router.Post("/intent/set", s.handleIntentSet)
	s.Router.Get("/intent/get", s.handleIntentGet)

	s.Router.Post("/execute", s.handleExecute)
	s.Router.Post("/clawdbot/invoke", s.handleClawdbotInvoke)
	s.Router.Post("/plan", s.handlePlan)

	s.Router.Get("/audit/query", s.handleAuditQuery)
	s.Router.Get("/decisions/query", s.handleDecisionsQuery)
	s.Router.Get("/decisions/{id}", s.handleDecisionGet)

	s.Router.Post("/credentials/set", s.handleCredentialsSet)
	s.Router.Delete("/credentials/{id}", s.handleCredentialsDelete)

	s.Router.Get("/policy-packs", s.handlePolicyPacksList)
	s.Router.Post("/policy-packs/{name}/apply", s.handlePolicyPackApply)

	s.Router.Post("/integrations/clawdbot/connect", s.handleIntegrationsClawdbotConnect)
	s.Router.Get("/account/integrations", s.handleAccountIntegrations)

	s.Router.Get("/metrics", s.handleMetricsJSON)
	s.Router.Get("/benchmark/trust-spec", s.handleBenchmarkTrustSpec)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// reachability classifies the configured downstream bot-gateway URL for
// /account/integrations and the trust-spec benchmark.
func (s *Server) reachability(r *http.Request) antibypass.Classification {
	if s.cfg.ClawdbotBaseURL == "" {
		return antibypass.ClassUnknown
	}
	return antibypass.ClassifyHost(r.Context(), hostOnly(s.cfg.ClawdbotBaseURL), antibypass.DefaultResolver)
}

func hostOnly(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
