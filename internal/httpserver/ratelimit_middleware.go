package httpserver

import (
	"net/http"

	"github.com/edonhq/gateway/internal/apperror"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/ratelimit"
	"github.com/edonhq/gateway/internal/telemetry"
)

// rateLimitMiddleware enforces three fixed-order windows checked per
// principal, never by reading the request body. It runs after
// the Authenticator so a Principal is already on the context for every
// non-public path.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authn.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, ok := authn.FromContext(r.Context())
		key := "anon:" + r.RemoteAddr
		limits := ratelimit.DefaultAnonymous
		if ok && principal != nil {
			key = principal.TokenHash
			limits = ratelimit.DefaultAuthenticated
		}

		result, err := s.rateLimiter.Check(r.Context(), key, limits)
		if err != nil {
			RespondInternalError(w, s.logger, "checking rate limit", err)
			return
		}
		if !result.Allowed {
			telemetry.RateLimitHitsTotal.WithLabelValues(result.ExceededWindow).Inc()
			RespondTypedError(w, apperror.New(apperror.KindRateLimited, "rate limit exceeded").WithRetryAfter(result.RetryAfterSeconds))
			return
		}

		if err := s.rateLimiter.Record(r.Context(), key, limits); err != nil {
			s.logger.Error("recording rate limit counters", "error", err)
		}

		next.ServeHTTP(w, r)
	})
}
