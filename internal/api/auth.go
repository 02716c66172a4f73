package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"careerbook/internal/config"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// HTTPAuth gates requests on a static API key header and applies a per-key
// token bucket rate limit. Admin routes additionally require the "admin"
// permission on the key.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	clients := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, key := range cfg.Auth.APIKeys {
		clients[key.Key] = key
	}
	return &HTTPAuth{cfg: cfg, clients: clients}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if !a.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		client, ok := a.checkKey(r.Header.Get(a.headerName()))
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}

		if perm := requiredPermission(r); perm != "" && !hasPermission(client, perm) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		if !a.getLimiter(client.Key).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) headerName() string {
	if a.cfg.Auth.HeaderAPIKey != "" {
		return a.cfg.Auth.HeaderAPIKey
	}
	return "x-api-key"
}

func (a *HTTPAuth) checkKey(presented string) (config.APIClientKey, bool) {
	if presented == "" {
		return config.APIClientKey{}, false
	}
	for key, client := range a.clients {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			return client, true
		}
	}
	return config.APIClientKey{}, false
}

// requiredPermission maps a request to the permission it demands.
func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/admin/export"):
		return "admin:export"
	case strings.HasPrefix(path, "/api/v1/admin/"):
		return "admin:premium"
	case path == "/api/v1/premium/status":
		return "read:premium"
	case strings.HasPrefix(path, "/api/v1/premium/"):
		return "write:premium"
	case strings.HasPrefix(path, "/api/v1/consultants"):
		return "read:consultants"
	case path == "/api/v1/bookings" && r.Method == http.MethodGet:
		return "read:bookings"
	case path == "/api/v1/bookings", path == "/api/v1/users":
		return "write:bookings"
	}
	return ""
}

// hasPermission treats an empty permission list as allow-all.
func hasPermission(client config.APIClientKey, perm string) bool {
	if len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if cached, ok := a.limiters.Load(key); ok {
		return cached.(*rate.Limiter)
	}

	rps := a.cfg.RateLimit.RPS
	if rps <= 0 {
		rps = 10
	}
	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	actual, _ := a.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}
