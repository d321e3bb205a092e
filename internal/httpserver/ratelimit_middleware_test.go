package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/ratelimit"
)

func newTestServerForRateLimit(t *testing.T) *Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Server{
		rateLimiter: ratelimit.New(client, nil),
		logger:      discardLogger(),
	}
}

func TestRateLimitMiddleware_PublicPathBypassesLimiter(t *testing.T) {
	s := newTestServerForRateLimit(t)
	called := false
	h := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if !called {
		t.Error("handler should run for a public path regardless of rate limit state")
	}
}

func TestRateLimitMiddleware_AllowsThenBlocksAnonymous(t *testing.T) {
	s := newTestServerForRateLimit(t)
	calls := 0
	h := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	// DefaultAnonymous allows 10/minute; exhaust it from the same RemoteAddr.
	for i := 0; i < ratelimit.DefaultAnonymous.Minute; i++ {
		r := httptest.NewRequest(http.MethodPost, "/execute", nil)
		r.RemoteAddr = "203.0.113.9:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	r := httptest.NewRequest(http.MethodPost, "/execute", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 once the anonymous minute limit is exhausted", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got == "" {
		t.Error("Retry-After header missing on 429 response")
	}
	if calls != ratelimit.DefaultAnonymous.Minute {
		t.Errorf("handler ran %d times, want %d", calls, ratelimit.DefaultAnonymous.Minute)
	}
}

func TestRateLimitMiddleware_AuthenticatedPrincipalUsesTokenHashKey(t *testing.T) {
	s := newTestServerForRateLimit(t)
	h := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	principal := &authn.Principal{TokenHash: "hash-of-tenant-a-token"}
	r := httptest.NewRequest(http.MethodPost, "/execute", nil)
	r = r.WithContext(authn.NewContext(r.Context(), principal))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for the first authenticated request", w.Code)
	}
}
